package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SubjectPrefix roots every mirrored event: buses.<route>.<bus>.
const SubjectPrefix = "buses"

// drainTimeout bounds how long Close waits for buffered publishes.
const drainTimeout = 5 * time.Second

type NATSMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

// NATSBridge mirrors hub events onto NATS for consumers outside this service.
type NATSBridge struct {
	nc      *nats.Conn
	metrics NATSMetrics
}

// DialNATS connects with exponential backoff bounded by ctx.
func DialNATS(ctx context.Context, url string, m NATSMetrics) (*NATSBridge, error) {
	var nc *nats.Conn
	op := func() error {
		var err error
		nc, err = nats.Connect(url,
			nats.Name("bus-tracker"),
			nats.DrainTimeout(drainTimeout),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if m != nil {
					m.NATSSetConnected(false)
				}
				logrus.WithError(err).Warn("nats disconnected")
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				if m != nil {
					m.NATSSetConnected(true)
				}
				logrus.Info("nats reconnected")
			}),
			nats.ClosedHandler(func(_ *nats.Conn) {
				if m != nil {
					m.NATSSetConnected(false)
				}
				logrus.Info("nats closed")
			}),
		)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSBridge{nc: nc, metrics: m}, nil
}

// Attach subscribes the bridge to every event on h.
func (b *NATSBridge) Attach(h *Hub) *Subscription {
	return h.Subscribe(Filter{}, func(ev ChangeEvent) {
		if err := b.Publish(ev); err != nil {
			logrus.WithError(err).WithField("bus_id", ev.BusID).Warn("nats publish failed")
		}
	})
}

func (b *NATSBridge) Publish(ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = b.nc.Publish(Subject(ev), payload)
	if b.metrics != nil {
		if err != nil {
			b.metrics.NATSPublishErrInc()
		} else {
			b.metrics.NATSPublishedInc()
		}
	}
	return err
}

func (b *NATSBridge) Close() {
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.nc.Close()
		}
	}
}

// Subject is the NATS subject for ev. Buses without a route use "_".
func Subject(ev ChangeEvent) string {
	route := ""
	if ev.RouteID != nil {
		route = *ev.RouteID
	}
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(route), subjectToken(ev.BusID))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
