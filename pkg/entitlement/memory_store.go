package entitlement

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// MemoryStore keeps records in process memory. It satisfies the Store
// contract with a single mutex and is meant for tests and single-instance
// development setups.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.UserID]; ok {
		return ErrRecordExists
	}
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Increment(_ context.Context, userID string, feature tiers.Feature, by int64) (IncrementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return IncrementResult{}, ErrRecordNotFound
	}

	c, ok := rec.Usage[feature]
	if !ok || (!c.Unlimited() && c.Count+by > c.Cap) {
		return IncrementResult{Count: c.Count, Cap: c.Cap}, nil
	}
	c.Count += by
	rec.Usage[feature] = c
	return IncrementResult{Applied: true, Count: c.Count, Cap: c.Cap}, nil
}

func (s *MemoryStore) Decrement(_ context.Context, userID string, feature tiers.Feature, by int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return 0, ErrRecordNotFound
	}
	c, ok := rec.Usage[feature]
	if !ok {
		return 0, nil
	}
	c.Count = max(c.Count-by, 0)
	rec.Usage[feature] = c
	return c.Count, nil
}

func (s *MemoryStore) Replace(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[rec.UserID]; ok && cur.Deleted && !rec.Deleted {
		return ErrAccountDeleted
	}
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[userID]; !ok {
		return ErrRecordNotFound
	}
	delete(s.records, userID)
	return nil
}

// ListUserIDs walks live records in user id order.
func (s *MemoryStore) ListUserIDs(ctx context.Context, fn func(userID string) error) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.records))
	for id, rec := range s.records {
		if !rec.Deleted {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	slices.Sort(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return nil
}
