package payment

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// EventLog makes webhook handling idempotent. Begin claims an event id;
// Complete marks it done; Release drops the claim so a later retry can
// process the event again.
//
// Begin returns ErrDuplicateEvent for a completed id and ErrEventInFlight
// while another handler holds the claim.
type EventLog interface {
	Begin(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
	Release(ctx context.Context, id string) error
}

const (
	eventInFlight = "inflight"
	eventDone     = "done"
)

// MemoryEventLog keeps claims in process memory.
type MemoryEventLog struct {
	cache    *cache.Cache
	inFlight time.Duration
	retain   time.Duration
}

// NewMemoryEventLog creates an in-memory log. A claim expires after
// inFlight; a completed id is remembered for retain.
func NewMemoryEventLog(inFlight, retain time.Duration) *MemoryEventLog {
	return &MemoryEventLog{
		cache:    cache.New(retain, 10*time.Minute),
		inFlight: inFlight,
		retain:   retain,
	}
}

func (l *MemoryEventLog) Begin(_ context.Context, id string) error {
	if err := l.cache.Add(id, eventInFlight, l.inFlight); err == nil {
		return nil
	}
	if state, ok := l.cache.Get(id); ok && state == eventDone {
		return ErrDuplicateEvent
	}
	return ErrEventInFlight
}

func (l *MemoryEventLog) Complete(_ context.Context, id string) error {
	l.cache.Set(id, eventDone, l.retain)
	return nil
}

func (l *MemoryEventLog) Release(_ context.Context, id string) error {
	l.cache.Delete(id)
	return nil
}

// RedisEventLog shares claims between instances with SET NX.
type RedisEventLog struct {
	client   redis.UniversalClient
	prefix   string
	inFlight time.Duration
	retain   time.Duration
}

// NewRedisEventLog creates a log storing keys under prefix+"evt:".
func NewRedisEventLog(client redis.UniversalClient, prefix string, inFlight, retain time.Duration) *RedisEventLog {
	return &RedisEventLog{client: client, prefix: prefix + "evt:", inFlight: inFlight, retain: retain}
}

func (l *RedisEventLog) Begin(ctx context.Context, id string) error {
	key := l.prefix + id
	ok, err := l.client.SetNX(ctx, key, eventInFlight, l.inFlight).Result()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	state, err := l.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between the two calls; let the caller retry
		return ErrEventInFlight
	case err != nil:
		return err
	case state == eventDone:
		return ErrDuplicateEvent
	}
	return ErrEventInFlight
}

func (l *RedisEventLog) Complete(ctx context.Context, id string) error {
	return l.client.Set(ctx, l.prefix+id, eventDone, l.retain).Err()
}

func (l *RedisEventLog) Release(ctx context.Context, id string) error {
	return l.client.Del(ctx, l.prefix+id).Err()
}
