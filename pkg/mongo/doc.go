// Package mongo connects to MongoDB with go.mongodb.org/mongo-driver/v2,
// retrying on startup, and exposes a health check for readiness probes.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := mongostore.New(db)
package mongo
