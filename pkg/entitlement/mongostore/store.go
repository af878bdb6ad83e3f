package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/quotakit/pkg/entitlement"
	mongopkg "github.com/dmitrymomot/quotakit/pkg/mongo"
	"github.com/dmitrymomot/quotakit/pkg/tiers"
)

// DefaultCollection is used unless WithCollection overrides it.
const DefaultCollection = "entitlements"

// Store implements entitlement.Store and entitlement.Lister on MongoDB.
type Store struct {
	coll *mongo.Collection
}

// Option configures a Store.
type Option func(*config)

type config struct {
	collection string
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(c *config) {
		if name != "" {
			c.collection = name
		}
	}
}

// New creates a store on db.
func New(db *mongo.Database, opts ...Option) *Store {
	c := &config{collection: DefaultCollection}
	for _, opt := range opts {
		opt(c)
	}
	return &Store{coll: db.Collection(c.collection)}
}

func (s *Store) Get(ctx context.Context, userID string) (*entitlement.Record, error) {
	var doc recordDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entitlement.ErrRecordNotFound
		}
		return nil, storeErr("get record", err)
	}
	return doc.record()
}

func (s *Store) Create(ctx context.Context, rec *entitlement.Record) error {
	if _, err := s.coll.InsertOne(ctx, toDoc(rec)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entitlement.ErrRecordExists
		}
		return storeErr("create record", err)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, userID string, feature tiers.Feature, by int64) (entitlement.IncrementResult, error) {
	countPath, capPath := counterPaths(feature)
	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: capPath, Value: bson.D{{Key: "$exists", Value: true}}},
		{Key: "$expr", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$" + capPath, tiers.Unlimited}}},
			bson.D{{Key: "$lte", Value: bson.A{
				bson.D{{Key: "$add", Value: bson.A{"$" + countPath, by}}},
				"$" + capPath,
			}}},
		}}}},
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: countPath, Value: by}}}}
	opts := mongooptions.FindOneAndUpdate().
		SetReturnDocument(mongooptions.After).
		SetProjection(bson.D{{Key: "usage." + string(feature), Value: 1}})

	var doc recordDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		c := doc.Usage[string(feature)]
		return entitlement.IncrementResult{Applied: true, Count: c.Count, Cap: c.Cap}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return entitlement.IncrementResult{}, storeErr("increment", err)
	}

	c, err := s.counter(ctx, userID, feature)
	if err != nil {
		return entitlement.IncrementResult{}, err
	}
	return entitlement.IncrementResult{Count: c.Count, Cap: c.Cap}, nil
}

func (s *Store) Decrement(ctx context.Context, userID string, feature tiers.Feature, by int64) (int64, error) {
	countPath, capPath := counterPaths(feature)
	filter := bson.D{
		{Key: "_id", Value: userID},
		{Key: capPath, Value: bson.D{{Key: "$exists", Value: true}}},
	}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: countPath, Value: bson.D{{Key: "$max", Value: bson.A{
			0,
			bson.D{{Key: "$subtract", Value: bson.A{"$" + countPath, by}}},
		}}}}}}},
	}
	opts := mongooptions.FindOneAndUpdate().
		SetReturnDocument(mongooptions.After).
		SetProjection(bson.D{{Key: "usage." + string(feature), Value: 1}})

	var doc recordDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.Usage[string(feature)].Count, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, storeErr("decrement", err)
	}

	if _, err := s.counter(ctx, userID, feature); err != nil {
		return 0, err
	}
	return 0, nil
}

func (s *Store) Replace(ctx context.Context, rec *entitlement.Record) error {
	filter := bson.D{{Key: "_id", Value: rec.UserID}}
	if !rec.Deleted {
		// A tombstone fails the filter; the upsert then collides on _id.
		filter = append(filter, bson.E{Key: "deleted", Value: bson.D{{Key: "$ne", Value: true}}})
	}

	_, err := s.coll.ReplaceOne(ctx, filter, toDoc(rec), mongooptions.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entitlement.ErrAccountDeleted
		}
		return storeErr("replace record", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: userID}})
	if err != nil {
		return storeErr("delete record", err)
	}
	if res.DeletedCount == 0 {
		return entitlement.ErrRecordNotFound
	}
	return nil
}

// ListUserIDs streams live user ids in _id order.
func (s *Store) ListUserIDs(ctx context.Context, fn func(userID string) error) error {
	opts := mongooptions.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, bson.D{{Key: "deleted", Value: bson.D{{Key: "$ne", Value: true}}}}, opts)
	if err != nil {
		return storeErr("list users", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decode user id: %w", err)
		}
		if err := fn(doc.ID); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return storeErr("list users", err)
	}
	return nil
}

// counter reads a single counter; a missing record is ErrRecordNotFound and
// a missing counter is the zero counter.
func (s *Store) counter(ctx context.Context, userID string, feature tiers.Feature) (counterDoc, error) {
	var doc recordDoc
	opts := mongooptions.FindOne().SetProjection(bson.D{{Key: "usage." + string(feature), Value: 1}})
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: userID}}, opts).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return counterDoc{}, entitlement.ErrRecordNotFound
	case err != nil:
		return counterDoc{}, storeErr("read counter", err)
	}
	return doc.Usage[string(feature)], nil
}

func counterPaths(f tiers.Feature) (count, limit string) {
	base := "usage." + string(f)
	return base + ".count", base + ".cap"
}

func storeErr(op string, err error) error {
	if mongopkg.IsUnavailableError(err) {
		return errors.Join(entitlement.ErrStoreUnavailable, fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
