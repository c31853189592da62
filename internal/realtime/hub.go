package realtime

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const subscriberBuffer = 64

// Metrics observes hub activity.
type Metrics interface {
	ObserveChange(eventType string)
	SubscriptionOpened()
	SubscriptionClosed()
	EventDropped()
}

// Hub is an in-process publish/subscribe point for ChangeEvents. Each
// subscriber has its own goroutine and buffer, so a slow callback delays only
// its own deliveries.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	closed  bool
	metrics Metrics
}

func NewHub(m Metrics) *Hub {
	return &Hub{subs: make(map[uint64]*Subscription), metrics: m}
}

// Subscribe registers cb for events matching f. The returned Subscription
// must be released with Unsubscribe.
func (h *Hub) Subscribe(f Filter, cb func(ChangeEvent)) *Subscription {
	s := &Subscription{
		hub:    h,
		filter: f,
		cb:     cb,
		queue:  make(chan ChangeEvent, subscriberBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.stopped = true
		close(s.done)
		return s
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SubscriptionOpened()
	}
	go s.run()
	return s
}

// Publish delivers ev to every matching subscriber without blocking. A full
// subscriber buffer drops the event for that subscriber only.
func (h *Hub) Publish(ev ChangeEvent) {
	if h.metrics != nil {
		h.metrics.ObserveChange(string(ev.Type))
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.filter.Match(ev) {
			continue
		}
		select {
		case s.queue <- ev:
		default:
			if h.metrics != nil {
				h.metrics.EventDropped()
			}
			logrus.WithFields(logrus.Fields{
				"subscription": s.id,
				"bus_id":       ev.BusID,
			}).Warn("Subscriber buffer full, dropping change event")
		}
	}
}

// Notify lets the hub act as the gateway's notifier in single-process mode.
func (h *Hub) Notify(_ context.Context, ev ChangeEvent) error {
	h.Publish(ev)
	return nil
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unsubscribes everyone. Later Subscribe calls return inert subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (h *Hub) remove(id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; !ok {
		return false
	}
	delete(h.subs, id)
	return true
}

// Subscription is a handle on one registered callback.
type Subscription struct {
	hub    *Hub
	id     uint64
	filter Filter
	cb     func(ChangeEvent)
	queue  chan ChangeEvent
	done   chan struct{}

	// deliver guards stopped and is held while the callback runs.
	deliver sync.Mutex
	stopped bool
	once    sync.Once
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			s.deliver.Lock()
			if !s.stopped {
				s.cb(ev)
			}
			s.deliver.Unlock()
		}
	}
}

// Unsubscribe stops delivery. It is idempotent, and once it returns the
// callback will not be invoked again. It waits for a callback already in
// progress, so it must not be called from inside the callback itself.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.hub.remove(s.id) && s.hub.metrics != nil {
			s.hub.metrics.SubscriptionClosed()
		}
		select {
		case <-s.done:
		default:
			close(s.done)
		}
		s.deliver.Lock()
		s.stopped = true
		s.deliver.Unlock()
	})
}

// Done is closed once the subscription has been released.
func (s *Subscription) Done() <-chan struct{} { return s.done }
