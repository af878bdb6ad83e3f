// Package redisstore persists entitlement records in Redis.
//
// Each user is one hash under "<prefix>ent:<userID>". Scalar fields hold the
// tier, cycle bounds (unix milliseconds), payment status, subscription
// reference and tombstone flag; every feature contributes three fields:
// "count:<feature>", "cap:<feature>" and "reset:<feature>".
//
// Create, Replace, Increment and Decrement run as Lua scripts so each is a
// single atomic step on the server. Increment checks the cap and bumps the
// counter inside the same script, which is what keeps concurrent consumers
// from overshooting a quota.
//
// Usage:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store := redisstore.New(client, redisstore.WithKeyPrefix(cfg.KeyPrefix))
//	ledger := entitlement.New(store, tiers.Default())
package redisstore
