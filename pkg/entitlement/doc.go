// Package entitlement meters per-user feature usage against subscription
// tier quotas.
//
// The Ledger is the only writer of entitlement records. It creates a record
// on first access, resets usage at billing cycle boundaries, admits or
// denies each unit of consumption, and moves users between tiers when
// payments arrive or lapse. Persistence is delegated to a Store whose
// Increment is a conditional atomic operation ("add one only while below
// the cap"); that primitive is what keeps concurrent requests from
// overshooting a quota.
//
// Typical request flow:
//
//	d, err := ledger.TryConsume(ctx, userID, tiers.JobAnalysis)
//	if err != nil {
//		return err // store unavailable, deleted account, unknown feature
//	}
//	if !d.Allowed {
//		return d.Err() // *QuotaError, matches ErrQuotaExceeded
//	}
//	result, err := analyzeJob(ctx, req) // the gated work happens outside the ledger
//
// Payment events call TransitionTier and RenewCycle; account deletion calls
// DeleteAccount, which leaves a tombstone so that late requests cannot
// resurrect the record.
//
// Implementations of Store live in sibling packages (redisstore, pgstore,
// mongostore, firestorestore). MemoryStore is provided here for tests and
// single-process use, and the storetest package holds the shared
// conformance suite.
package entitlement
