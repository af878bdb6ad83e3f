// Package storetest is the conformance suite every entitlement.Store
// implementation runs in its own tests.
package storetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) entitlement.Store

// Record builds a record with every feature capped at limit.
func Record(userID string, limit int64) *entitlement.Record {
	now := time.Now().UTC().Truncate(time.Millisecond)
	usage := make(map[tiers.Feature]entitlement.UsageCounter)
	for _, f := range tiers.Features() {
		usage[f] = entitlement.UsageCounter{Cap: limit, LastReset: now}
	}
	return &entitlement.Record{
		UserID:        userID,
		Tier:          "free",
		Usage:         usage,
		CycleStart:    now,
		PaymentStatus: entitlement.StatusPending,
		UpdatedAt:     now,
	}
}

// Normalize strips sub-millisecond precision and locations so records
// read back from different backends compare equal.
func Normalize(rec *entitlement.Record) *entitlement.Record {
	c := rec.Clone()
	norm := func(t time.Time) time.Time { return time.UnixMilli(t.UnixMilli()).UTC() }
	c.CycleStart = norm(c.CycleStart)
	c.UpdatedAt = norm(c.UpdatedAt)
	if c.CycleEnd != nil {
		end := norm(*c.CycleEnd)
		c.CycleEnd = &end
	}
	for f, u := range c.Usage {
		u.LastReset = norm(u.LastReset)
		c.Usage[f] = u
	}
	return c
}

// Run executes the suite. Subtests are not parallel so that factories may
// share a single backend and clean it between runs.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "nobody")
		assert.ErrorIs(t, err, entitlement.ErrRecordNotFound)
	})

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		rec := Record("u-create", 5)
		end := rec.CycleStart.AddDate(0, 1, 0)
		rec.CycleEnd = &end
		rec.SubscriptionRef = "sub_123"

		require.NoError(t, s.Create(ctx, rec))

		got, err := s.Get(ctx, "u-create")
		require.NoError(t, err)
		assert.Equal(t, Normalize(rec), Normalize(got))
	})

	t.Run("create is first writer wins", func(t *testing.T) {
		s := newStore(t)
		first := Record("u-dup", 5)
		require.NoError(t, s.Create(ctx, first))

		second := Record("u-dup", 9)
		second.Tier = "pro"
		assert.ErrorIs(t, s.Create(ctx, second), entitlement.ErrRecordExists)

		got, err := s.Get(ctx, "u-dup")
		require.NoError(t, err)
		assert.Equal(t, "free", got.Tier)
		assert.Equal(t, int64(5), got.Counter(tiers.JobAnalysis).Cap)
	})

	t.Run("increment is conditional", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, Record("u-inc", 2)))

		for want := int64(1); want <= 2; want++ {
			res, err := s.Increment(ctx, "u-inc", tiers.JobAnalysis, 1)
			require.NoError(t, err)
			assert.True(t, res.Applied)
			assert.Equal(t, want, res.Count)
			assert.Equal(t, int64(2), res.Cap)
		}

		res, err := s.Increment(ctx, "u-inc", tiers.JobAnalysis, 1)
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, int64(2), res.Count)

		got, err := s.Get(ctx, "u-inc")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Counter(tiers.JobAnalysis).Count)
		assert.Equal(t, int64(0), got.Counter(tiers.ResumeGeneration).Count)
	})

	t.Run("increment respects by", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, Record("u-by", 5)))

		res, err := s.Increment(ctx, "u-by", tiers.InterviewPrep, 4)
		require.NoError(t, err)
		assert.True(t, res.Applied)

		res, err = s.Increment(ctx, "u-by", tiers.InterviewPrep, 2)
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, int64(4), res.Count)
	})

	t.Run("increment unlimited", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, Record("u-unl", tiers.Unlimited)))

		var res entitlement.IncrementResult
		var err error
		for range 25 {
			res, err = s.Increment(ctx, "u-unl", tiers.ResumeGeneration, 1)
			require.NoError(t, err)
			require.True(t, res.Applied)
		}
		assert.Equal(t, int64(25), res.Count)
		assert.Equal(t, tiers.Unlimited, res.Cap)
	})

	t.Run("increment missing record", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Increment(ctx, "nobody", tiers.JobAnalysis, 1)
		assert.ErrorIs(t, err, entitlement.ErrRecordNotFound)
	})

	t.Run("increment missing counter", func(t *testing.T) {
		s := newStore(t)
		rec := Record("u-nocounter", 5)
		delete(rec.Usage, tiers.LinkedinOptimization)
		require.NoError(t, s.Create(ctx, rec))

		res, err := s.Increment(ctx, "u-nocounter", tiers.LinkedinOptimization, 1)
		require.NoError(t, err)
		assert.False(t, res.Applied)
	})

	t.Run("decrement floors at zero", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, Record("u-dec", 5)))

		_, err := s.Increment(ctx, "u-dec", tiers.JobApplications, 1)
		require.NoError(t, err)

		n, err := s.Decrement(ctx, "u-dec", tiers.JobApplications, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		n, err = s.Decrement(ctx, "u-dec", tiers.JobApplications, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		got, err := s.Get(ctx, "u-dec")
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Counter(tiers.JobApplications).Count)

		_, err = s.Decrement(ctx, "nobody", tiers.JobApplications, 1)
		assert.ErrorIs(t, err, entitlement.ErrRecordNotFound)
	})

	t.Run("replace overwrites and upserts", func(t *testing.T) {
		s := newStore(t)
		rec := Record("u-rep", 5)
		require.NoError(t, s.Create(ctx, rec))
		_, err := s.Increment(ctx, "u-rep", tiers.JobAnalysis, 1)
		require.NoError(t, err)

		next := Record("u-rep", tiers.Unlimited)
		next.Tier = "pro"
		next.PaymentStatus = entitlement.StatusActive
		end := next.CycleStart.AddDate(0, 1, 0)
		next.CycleEnd = &end
		next.SubscriptionRef = "sub_9"
		require.NoError(t, s.Replace(ctx, next))

		got, err := s.Get(ctx, "u-rep")
		require.NoError(t, err)
		assert.Equal(t, Normalize(next), Normalize(got))

		fresh := Record("u-upsert", 3)
		require.NoError(t, s.Replace(ctx, fresh))
		got, err = s.Get(ctx, "u-upsert")
		require.NoError(t, err)
		assert.Equal(t, Normalize(fresh), Normalize(got))
	})

	t.Run("replace clears cycle end", func(t *testing.T) {
		s := newStore(t)
		rec := Record("u-clear", 5)
		end := rec.CycleStart.AddDate(0, 1, 0)
		rec.CycleEnd = &end
		require.NoError(t, s.Create(ctx, rec))

		rec.CycleEnd = nil
		require.NoError(t, s.Replace(ctx, rec))

		got, err := s.Get(ctx, "u-clear")
		require.NoError(t, err)
		assert.Nil(t, got.CycleEnd)
	})

	t.Run("replace keeps tombstones", func(t *testing.T) {
		s := newStore(t)
		dead := Record("u-dead", 0)
		dead.Deleted = true
		dead.PaymentStatus = entitlement.StatusExpired
		require.NoError(t, s.Replace(ctx, dead))

		assert.ErrorIs(t, s.Replace(ctx, Record("u-dead", 5)), entitlement.ErrAccountDeleted)

		got, err := s.Get(ctx, "u-dead")
		require.NoError(t, err)
		assert.True(t, got.Deleted)

		res, err := s.Increment(ctx, "u-dead", tiers.JobAnalysis, 1)
		require.NoError(t, err)
		assert.False(t, res.Applied)

		// a tombstone may be rewritten by another tombstone
		require.NoError(t, s.Replace(ctx, dead))
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, Record("u-del", 5)))
		require.NoError(t, s.Delete(ctx, "u-del"))

		_, err := s.Get(ctx, "u-del")
		assert.ErrorIs(t, err, entitlement.ErrRecordNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "u-del"), entitlement.ErrRecordNotFound)

		// purged users can be created again
		require.NoError(t, s.Create(ctx, Record("u-del", 5)))
	})

	t.Run("concurrent increments never exceed cap", func(t *testing.T) {
		s := newStore(t)
		const limit, workers = 10, 40
		require.NoError(t, s.Create(ctx, Record("u-race", limit)))

		var allowed atomic.Int64
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := s.Increment(ctx, "u-race", tiers.CoverLetterGeneration, 1)
				if assert.NoError(t, err) && res.Applied {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(limit), allowed.Load())
		got, err := s.Get(ctx, "u-race")
		require.NoError(t, err)
		assert.Equal(t, int64(limit), got.Counter(tiers.CoverLetterGeneration).Count)
	})

	t.Run("list live users", func(t *testing.T) {
		s := newStore(t)
		lister, ok := s.(entitlement.Lister)
		if !ok {
			t.Skip("store does not implement Lister")
		}

		for i := range 3 {
			require.NoError(t, s.Create(ctx, Record(fmt.Sprintf("u-list-%d", i), 5)))
		}
		dead := Record("u-list-dead", 0)
		dead.Deleted = true
		require.NoError(t, s.Replace(ctx, dead))

		var ids []string
		require.NoError(t, lister.ListUserIDs(ctx, func(id string) error {
			ids = append(ids, id)
			return nil
		}))
		slices.Sort(ids)
		assert.Equal(t, []string{"u-list-0", "u-list-1", "u-list-2"}, ids)
	})
}
