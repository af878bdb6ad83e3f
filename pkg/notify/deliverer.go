package notify

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Deliverer sends a message through one channel.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, msg Message) error

func (f DelivererFunc) Deliver(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// MultiDeliverer fans a message out to several channels. A failing channel
// is logged and skipped.
type MultiDeliverer struct {
	deliverers []Deliverer
	log        *slog.Logger
}

// NewMultiDeliverer combines deliverers; nil entries are dropped.
func NewMultiDeliverer(log *slog.Logger, deliverers ...Deliverer) *MultiDeliverer {
	m := &MultiDeliverer{log: logger.OrDiscard(log)}
	for _, d := range deliverers {
		if d != nil {
			m.deliverers = append(m.deliverers, d)
		}
	}
	return m
}

func (m *MultiDeliverer) Deliver(ctx context.Context, msg Message) error {
	for i, d := range m.deliverers {
		if err := d.Deliver(ctx, msg); err != nil {
			m.log.LogAttrs(ctx, slog.LevelError, "failed to deliver notification",
				slog.String("notification_id", msg.ID),
				logger.UserID(msg.UserID),
				slog.Int("deliverer_index", i),
				logger.Error(err),
			)
		}
	}
	return nil
}

// LogDeliverer writes messages to the log. It is the in-app channel stand-in
// for local development.
type LogDeliverer struct {
	log *slog.Logger
}

func NewLogDeliverer(log *slog.Logger) *LogDeliverer {
	return &LogDeliverer{log: logger.OrDiscard(log)}
}

func (d *LogDeliverer) Deliver(ctx context.Context, msg Message) error {
	d.log.LogAttrs(ctx, slog.LevelInfo, "notification",
		slog.String("notification_id", msg.ID),
		slog.String("kind", string(msg.Kind)),
		logger.UserID(msg.UserID),
		slog.String("title", msg.Title),
	)
	return nil
}
