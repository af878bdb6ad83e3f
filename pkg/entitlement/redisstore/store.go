package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	redispkg "github.com/dmitrymomot/quotakit/pkg/redis"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// Store implements entitlement.Store and entitlement.Lister on Redis.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	scanBatch int64
}

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces every key, e.g. "quotakit:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithScanBatch sets the SCAN COUNT hint used by ListUserIDs.
func WithScanBatch(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.scanBatch = n
		}
	}
}

// New wraps a connected client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, scanBatch: 500}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(userID string) string {
	return s.prefix + "ent:" + userID
}

func (s *Store) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	h, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(h) == 0 {
		return nil, entitlement.ErrRecordNotFound
	}
	rec, err := decode(userID, h)
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", userID, err)
	}
	return rec, nil
}

func (s *Store) Create(ctx context.Context, rec *entitlement.Record) error {
	ok, err := createScript.Run(ctx, s.client, []string{s.key(rec.UserID)}, encode(rec)...).Int()
	if err != nil {
		return unavailable(err)
	}
	if ok == 0 {
		return entitlement.ErrRecordExists
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, userID string, feature tiers.Feature, by int64) (entitlement.IncrementResult, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.key(userID)}, string(feature), by).Int64Slice()
	if err != nil {
		return entitlement.IncrementResult{}, unavailable(err)
	}
	if len(res) != 3 {
		return entitlement.IncrementResult{}, fmt.Errorf("increment: unexpected reply %v", res)
	}
	if res[0] < 0 {
		return entitlement.IncrementResult{}, entitlement.ErrRecordNotFound
	}
	return entitlement.IncrementResult{Applied: res[0] == 1, Count: res[1], Cap: res[2]}, nil
}

func (s *Store) Decrement(ctx context.Context, userID string, feature tiers.Feature, by int64) (int64, error) {
	n, err := decrementScript.Run(ctx, s.client, []string{s.key(userID)}, string(feature), by).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	if n < 0 {
		return 0, entitlement.ErrRecordNotFound
	}
	return n, nil
}

func (s *Store) Replace(ctx context.Context, rec *entitlement.Record) error {
	tomb := "0"
	if rec.Deleted {
		tomb = "1"
	}
	args := append([]any{tomb}, encode(rec)...)

	ok, err := replaceScript.Run(ctx, s.client, []string{s.key(rec.UserID)}, args...).Int()
	if err != nil {
		return unavailable(err)
	}
	if ok == 0 {
		return entitlement.ErrAccountDeleted
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	n, err := s.client.Del(ctx, s.key(userID)).Result()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return entitlement.ErrRecordNotFound
	}
	return nil
}

// ListUserIDs scans record keys and reports users without a tombstone.
// Order is whatever SCAN yields.
func (s *Store) ListUserIDs(ctx context.Context, fn func(userID string) error) error {
	keyPrefix := s.key("")
	var cbErr error
	err := redispkg.ScanKeys(ctx, s.client, keyPrefix+"*", s.scanBatch, func(key string) error {
		deleted, err := s.client.HGet(ctx, key, fieldDeleted).Result()
		switch {
		case errors.Is(err, redis.Nil):
			return nil
		case err != nil:
			return unavailable(err)
		case deleted == "1":
			return nil
		}
		cbErr = fn(strings.TrimPrefix(key, keyPrefix))
		return cbErr
	})
	if err != nil && cbErr == nil && !errors.Is(err, entitlement.ErrStoreUnavailable) {
		return unavailable(err)
	}
	return err
}

func unavailable(err error) error {
	return errors.Join(entitlement.ErrStoreUnavailable, err)
}
