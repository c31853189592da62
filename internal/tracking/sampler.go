// Package tracking runs the driver-side location sampler: while the driver
// is online it reads the device position on a fixed interval and pushes it,
// with the current occupancy, to the assigned bus.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
)

var (
	ErrNoAssignedBus = errors.New("no bus assigned to driver")
	ErrOffline       = errors.New("driver is offline")
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// PositionSource is the device geolocation contract.
type PositionSource interface {
	Current(ctx context.Context) (models.LatLng, error)
}

// Pusher writes driver updates for a bus.
type Pusher interface {
	PushLocation(ctx context.Context, busID string, loc models.LatLng, occ models.Occupancy) error
	PushStatus(ctx context.Context, busID string, st models.BusStatus) error
	PushOccupancy(ctx context.Context, busID string, occ models.Occupancy) error
	PushSOS(ctx context.Context, busID string) error
}

type Config struct {
	BusID    string
	Interval time.Duration
	Timeout  time.Duration
	// OnPermissionDenied is called at most once when the device refuses
	// location access.
	OnPermissionDenied func(error)
	Now                func() time.Time
}

// State is a snapshot of the sampler.
type State struct {
	Online    bool             `json:"online"`
	InTrip    bool             `json:"in_trip"`
	Sending   bool             `json:"sending"`
	LastSent  time.Time        `json:"last_sent"`
	Occupancy models.Occupancy `json:"occupancy"`
}

type Sampler struct {
	src  PositionSource
	push Pusher
	cfg  Config
	log  *logrus.Entry

	deniedOnce sync.Once

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
	// starting is set while GoOnline waits for the status push.
	starting bool
}

func NewSampler(src PositionSource, push Pusher, cfg Config) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Sampler{
		src:   src,
		push:  push,
		cfg:   cfg,
		log:   logrus.WithFields(logrus.Fields{"component": "sampler", "bus_id": cfg.BusID}),
		state: State{Occupancy: models.OccupancyEmpty},
	}
}

func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GoOnline marks the bus Available and starts sampling. The first sample is
// taken immediately. Calling it while online, or while another GoOnline is
// in progress, is a no-op.
func (s *Sampler) GoOnline(ctx context.Context) error {
	if s.cfg.BusID == "" {
		return ErrNoAssignedBus
	}
	s.mu.Lock()
	if s.state.Online || s.starting {
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.mu.Unlock()

	if err := s.push.PushStatus(ctx, s.cfg.BusID, models.StatusAvailable); err != nil {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
		return fmt.Errorf("go online: %w", err)
	}

	s.mu.Lock()
	if !s.starting {
		// GoOffline ran while the status was in flight
		s.mu.Unlock()
		return nil
	}
	s.starting = false
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.state.Online = true
	s.state.InTrip = false
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	go s.loop(loopCtx, done)
	s.log.Info("Driver online")
	return nil
}

// GoOffline stops the ticker and marks the bus Inactive. It does not wait for
// a push already in flight, which may still land after the status change.
func (s *Sampler) GoOffline(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.starting = false
	s.state.Online = false
	s.state.InTrip = false
	s.state.Sending = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := s.push.PushStatus(ctx, s.cfg.BusID, models.StatusInactive); err != nil {
		return fmt.Errorf("go offline: %w", err)
	}
	s.log.Info("Driver offline")
	return nil
}

// Wait blocks until the current sampling loop has exited.
func (s *Sampler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Sampler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	loc, err := s.src.Current(sctx)
	if err != nil {
		s.sampleFailed(err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	occ := s.State().Occupancy

	// the push itself is not cancelled by going offline
	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer pcancel()
	if err := s.push.PushLocation(pctx, s.cfg.BusID, loc, occ); err != nil {
		s.setSending(false, time.Time{})
		s.log.WithError(err).Warn("Location push failed")
		return
	}
	s.setSending(true, s.cfg.Now())
}

func (s *Sampler) sampleFailed(err error) {
	s.setSending(false, time.Time{})
	var gerr *GeolocationError
	if errors.As(err, &gerr) && gerr.Code == PermissionDenied {
		s.deniedOnce.Do(func() {
			s.log.Warn("Location permission denied")
			if s.cfg.OnPermissionDenied != nil {
				s.cfg.OnPermissionDenied(err)
			}
		})
		return
	}
	s.log.WithError(err).Debug("Location sample failed")
}

func (s *Sampler) setSending(ok bool, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Sending = ok && s.state.Online
	if ok {
		s.state.LastSent = at
	}
}

// SetOccupancy records the occupancy sent with each sample and, when online,
// pushes it straight away.
func (s *Sampler) SetOccupancy(ctx context.Context, occ models.Occupancy) error {
	if !occ.Valid() {
		return fmt.Errorf("unknown occupancy %q", occ)
	}
	s.mu.Lock()
	s.state.Occupancy = occ
	online := s.state.Online
	s.mu.Unlock()
	if !online {
		return nil
	}
	return s.push.PushOccupancy(ctx, s.cfg.BusID, occ)
}

// StartTrip moves an online bus from Available to In Trip.
func (s *Sampler) StartTrip(ctx context.Context) error {
	return s.setTrip(ctx, true)
}

func (s *Sampler) EndTrip(ctx context.Context) error {
	return s.setTrip(ctx, false)
}

func (s *Sampler) setTrip(ctx context.Context, inTrip bool) error {
	s.mu.Lock()
	online, cur := s.state.Online, s.state.InTrip
	s.mu.Unlock()
	if !online {
		return ErrOffline
	}
	if cur == inTrip {
		return nil
	}
	st := models.StatusAvailable
	if inTrip {
		st = models.StatusInTrip
	}
	if err := s.push.PushStatus(ctx, s.cfg.BusID, st); err != nil {
		return err
	}
	s.mu.Lock()
	s.state.InTrip = inTrip
	s.mu.Unlock()
	s.log.WithField("status", st).Info("Trip state changed")
	return nil
}

func (s *Sampler) RaiseSOS(ctx context.Context) error {
	if s.cfg.BusID == "" {
		return ErrNoAssignedBus
	}
	return s.push.PushSOS(ctx, s.cfg.BusID)
}
