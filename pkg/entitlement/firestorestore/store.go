package firestorestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// DefaultCollection matches the collection the web client reads.
const DefaultCollection = "userSubscriptions"

// Store implements entitlement.Store and entitlement.Lister on Firestore.
type Store struct {
	client   *firestore.Client
	coll     *firestore.CollectionRef
	attempts int
}

// Option configures a Store.
type Option func(*config)

type config struct {
	collection string
	attempts   int
}

func newConfig(opts ...Option) *config {
	c := &config{collection: DefaultCollection, attempts: firestore.DefaultTransactionMaxAttempts}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(c *config) {
		if name != "" {
			c.collection = name
		}
	}
}

// WithMaxAttempts bounds how often a contended transaction is retried.
// Once exhausted the call fails with entitlement.ErrStoreUnavailable.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// New creates a store on client.
func New(client *firestore.Client, opts ...Option) *Store {
	c := newConfig(opts...)
	return &Store{client: client, coll: client.Collection(c.collection), attempts: c.attempts}
}

func (s *Store) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	snap, err := s.coll.Doc(userID).Get(ctx)
	if err != nil {
		return nil, storeErr("get record", err)
	}
	return decode(snap)
}

func (s *Store) Create(ctx context.Context, rec *entitlement.Record) error {
	if _, err := s.coll.Doc(rec.UserID).Create(ctx, toDoc(rec)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return entitlement.ErrRecordExists
		}
		return storeErr("create record", err)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, userID string, feature tiers.Feature, by int64) (entitlement.IncrementResult, error) {
	ref := s.coll.Doc(userID)

	var res entitlement.IncrementResult
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		res = entitlement.IncrementResult{}

		c, ok, err := readCounter(tx, ref, feature)
		if err != nil {
			return err
		}
		res.Count, res.Cap = c.Count, c.Cap
		if !ok || (c.Cap != tiers.Unlimited && c.Count+by > c.Cap) {
			return nil
		}

		res.Applied = true
		res.Count = c.Count + by
		return tx.Update(ref, []firestore.Update{{
			FieldPath: firestore.FieldPath{"usage", string(feature), "count"},
			Value:     firestore.Increment(by),
		}})
	}, firestore.MaxAttempts(s.attempts))
	if err != nil {
		return entitlement.IncrementResult{}, passOrWrap("increment", err)
	}
	return res, nil
}

func (s *Store) Decrement(ctx context.Context, userID string, feature tiers.Feature, by int64) (int64, error) {
	ref := s.coll.Doc(userID)

	var left int64
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		left = 0

		c, ok, err := readCounter(tx, ref, feature)
		if err != nil || !ok {
			return err
		}
		left = max(c.Count-by, 0)
		return tx.Update(ref, []firestore.Update{{
			FieldPath: firestore.FieldPath{"usage", string(feature), "count"},
			Value:     left,
		}})
	}, firestore.MaxAttempts(s.attempts))
	if err != nil {
		return 0, passOrWrap("decrement", err)
	}
	return left, nil
}

func (s *Store) Replace(ctx context.Context, rec *entitlement.Record) error {
	ref := s.coll.Doc(rec.UserID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if !rec.Deleted {
			snap, err := tx.Get(ref)
			switch {
			case status.Code(err) == codes.NotFound:
			case err != nil:
				return err
			default:
				if deleted, _ := snap.DataAt("deleted"); deleted == true {
					return entitlement.ErrAccountDeleted
				}
			}
		}
		return tx.Set(ref, toDoc(rec))
	}, firestore.MaxAttempts(s.attempts))
	if err != nil {
		return passOrWrap("replace record", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	ref := s.coll.Doc(userID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return entitlement.ErrRecordNotFound
			}
			return err
		}
		return tx.Delete(ref)
	}, firestore.MaxAttempts(s.attempts))
	if err != nil {
		return passOrWrap("delete record", err)
	}
	return nil
}

// ListUserIDs streams ids of documents that are not tombstones.
func (s *Store) ListUserIDs(ctx context.Context, fn func(userID string) error) error {
	iter := s.coll.Where("deleted", "==", false).Select().Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return storeErr("list users", err)
		}
		if err := fn(snap.Ref.ID); err != nil {
			return err
		}
	}
}

// readCounter loads one counter inside tx. ok is false when the record has
// no counter for feature.
func readCounter(tx *firestore.Transaction, ref *firestore.DocumentRef, feature tiers.Feature) (counterDoc, bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return counterDoc{}, false, entitlement.ErrRecordNotFound
		}
		return counterDoc{}, false, err
	}

	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return counterDoc{}, false, fmt.Errorf("decode record: %w", err)
	}
	c, ok := doc.Usage[string(feature)]
	return c, ok, nil
}

func decode(snap *firestore.DocumentSnapshot) (*entitlement.Record, error) {
	var doc recordDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return doc.record(snap.Ref.ID)
}

// passOrWrap lets domain errors returned from a transaction body through.
func passOrWrap(op string, err error) error {
	for _, target := range []error{
		entitlement.ErrRecordNotFound,
		entitlement.ErrAccountDeleted,
	} {
		if errors.Is(err, target) {
			return err
		}
	}
	return storeErr(op, err)
}

func storeErr(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return entitlement.ErrRecordNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return errors.Join(entitlement.ErrStoreUnavailable, fmt.Errorf("%s: %w", op, err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(entitlement.ErrStoreUnavailable, fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
