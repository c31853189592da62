package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NotifyChannel is the PostgreSQL channel carrying bus change events.
const NotifyChannel = "bus_changes"

// PGNotifier publishes events with pg_notify so every instance listening on
// the channel sees them, including this one.
type PGNotifier struct {
	db      *gorm.DB
	channel string
}

func NewPGNotifier(db *gorm.DB) *PGNotifier {
	return &PGNotifier{db: db, channel: NotifyChannel}
}

func (n *PGNotifier) Notify(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := n.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", n.channel, string(payload)).Error; err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// PGListener feeds NOTIFY payloads from PostgreSQL into a Hub.
type PGListener struct {
	dsn     string
	channel string
	hub     *Hub
}

func NewPGListener(dsn string, hub *Hub) *PGListener {
	return &PGListener{dsn: dsn, channel: NotifyChannel, hub: hub}
}

// Run blocks until ctx is cancelled. The underlying listener reconnects on
// its own; notifications sent while disconnected are lost, which viewers
// tolerate because every event triggers a full reload.
func (l *PGListener) Run(ctx context.Context) error {
	log := logrus.WithField("channel", l.channel)
	problems := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.WithError(err).WithField("event", ev).Warn("Postgres listener problem")
		}
	}

	listener := pq.NewListener(l.dsn, 10*time.Second, time.Minute, problems)
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	log.Info("Listening for bus changes")

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				log.Warn("Postgres listener reconnected; changes during the gap were missed")
				continue
			}
			ev, err := decodeEvent(n.Extra)
			if err != nil {
				log.WithError(err).Warn("Discarding malformed change notification")
				continue
			}
			l.hub.Publish(ev)
		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					log.WithError(err).Warn("Postgres listener ping failed")
				}
			}()
		}
	}
}

func decodeEvent(payload string) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ChangeEvent{}, err
	}
	if ev.BusID == "" || ev.Type == "" {
		return ChangeEvent{}, fmt.Errorf("change event missing bus_id or eventType")
	}
	return ev, nil
}
