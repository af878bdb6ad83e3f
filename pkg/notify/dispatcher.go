package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Dispatcher is an asynchronous entitlement.Notifier. Notify renders and
// enqueues; worker goroutines deliver. A full queue drops the message so
// the ledger is never blocked by a slow channel.
type Dispatcher struct {
	renderer  *Renderer
	deliverer Deliverer
	log       *slog.Logger
	timeout   time.Duration

	queue  chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherConfig)

type dispatcherConfig struct {
	workers   int
	queueSize int
	timeout   time.Duration
	log       *slog.Logger
}

func WithWorkers(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithQueueSize(n int) DispatcherOption {
	return func(c *dispatcherConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithDeliveryTimeout bounds a single delivery.
func WithDeliveryTimeout(d time.Duration) DispatcherOption {
	return func(c *dispatcherConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(c *dispatcherConfig) { c.log = l }
}

// NewDispatcher starts the workers. Call Close to drain and stop them.
func NewDispatcher(renderer *Renderer, deliverer Deliverer, opts ...DispatcherOption) *Dispatcher {
	cfg := dispatcherConfig{workers: 2, queueSize: 256, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dispatcher{
		renderer:  renderer,
		deliverer: deliverer,
		log:       logger.OrDiscard(cfg.log).With(logger.Component("notify")),
		timeout:   cfg.timeout,
		queue:     make(chan Message, cfg.queueSize),
	}
	for range cfg.workers {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify implements entitlement.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, n entitlement.Notice) error {
	msg := d.renderer.Render(n)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		d.log.LogAttrs(ctx, slog.LevelWarn, "notification dropped, queue full",
			slog.String("kind", string(n.Kind)), logger.UserID(n.UserID))
		return ErrQueueFull
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.deliverer.Deliver(ctx, msg); err != nil {
			d.log.LogAttrs(ctx, slog.LevelError, "notification delivery failed",
				slog.String("notification_id", msg.ID),
				slog.String("kind", string(msg.Kind)),
				logger.UserID(msg.UserID),
				logger.Error(err),
			)
		}
		cancel()
	}
}

// Close stops accepting notices and waits for queued ones to be delivered,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
