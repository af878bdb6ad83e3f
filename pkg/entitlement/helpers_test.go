package entitlement_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) AddMonths(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, n, 0)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []entitlement.Notice
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, notice entitlement.Notice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) Kinds() []entitlement.NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]entitlement.NoticeKind, 0, len(n.notices))
	for _, x := range n.notices {
		kinds = append(kinds, x.Kind)
	}
	return kinds
}

type fixture struct {
	store    *entitlement.MemoryStore
	clock    *fakeClock
	notifier *recordingNotifier
	ledger   *entitlement.Ledger
}

func newFixture() *fixture {
	f := &fixture{
		store:    entitlement.NewMemoryStore(),
		clock:    newClock(),
		notifier: &recordingNotifier{},
	}
	f.ledger = entitlement.New(f.store, tiers.Default(),
		entitlement.WithClock(f.clock.Now),
		entitlement.WithNotifier(f.notifier),
	)
	return f
}

// mockStore lets tests inject store failures.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	args := m.Called(ctx, userID)
	rec, _ := args.Get(0).(*entitlement.Record)
	return rec, args.Error(1)
}

func (m *mockStore) Create(ctx context.Context, rec *entitlement.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) Increment(ctx context.Context, userID string, feature tiers.Feature, by int64) (entitlement.IncrementResult, error) {
	args := m.Called(ctx, userID, feature, by)
	return args.Get(0).(entitlement.IncrementResult), args.Error(1)
}

func (m *mockStore) Decrement(ctx context.Context, userID string, feature tiers.Feature, by int64) (int64, error) {
	args := m.Called(ctx, userID, feature, by)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) Replace(ctx context.Context, rec *entitlement.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type countingObserver struct {
	mu          sync.Mutex
	allowed     int
	denied      int
	resets      int
	transitions []string
}

func (o *countingObserver) ConsumeDecided(_ tiers.Feature, _ string, allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if allowed {
		o.allowed++
	} else {
		o.denied++
	}
}

func (o *countingObserver) CycleReset(string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resets++
}

func (o *countingObserver) TierChanged(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from+"->"+to)
}
