package pgstore

const (
	getRecordSQL = `
SELECT e.tier, e.cycle_start, e.cycle_end, e.payment_status, e.subscription_ref, e.deleted, e.updated_at,
       u.feature, u.count, u.cap, u.last_reset
FROM entitlements e
LEFT JOIN entitlement_usage u ON u.user_id = e.user_id
WHERE e.user_id = $1`

	insertRecordSQL = `
INSERT INTO entitlements (user_id, tier, cycle_start, cycle_end, payment_status, subscription_ref, deleted, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id) DO NOTHING`

	// The WHERE on the conflict branch keeps a tombstone from being
	// overwritten by a live record; zero affected rows signals that case.
	upsertRecordSQL = `
INSERT INTO entitlements (user_id, tier, cycle_start, cycle_end, payment_status, subscription_ref, deleted, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id) DO UPDATE SET
    tier = EXCLUDED.tier,
    cycle_start = EXCLUDED.cycle_start,
    cycle_end = EXCLUDED.cycle_end,
    payment_status = EXCLUDED.payment_status,
    subscription_ref = EXCLUDED.subscription_ref,
    deleted = EXCLUDED.deleted,
    updated_at = EXCLUDED.updated_at
WHERE NOT entitlements.deleted OR EXCLUDED.deleted`

	deleteUsageSQL = `DELETE FROM entitlement_usage WHERE user_id = $1`

	insertUsageSQL = `
INSERT INTO entitlement_usage (user_id, feature, count, cap, last_reset)
SELECT $1, u.feature, u.count, u.cap, u.last_reset
FROM unnest($2::text[], $3::bigint[], $4::bigint[], $5::timestamptz[]) AS u(feature, count, cap, last_reset)`

	incrementSQL = `
UPDATE entitlement_usage
SET count = count + $3
WHERE user_id = $1 AND feature = $2 AND (cap = -1 OR count + $3 <= cap)
RETURNING count, cap`

	counterSQL = `
SELECT u.count, u.cap
FROM entitlements e
LEFT JOIN entitlement_usage u ON u.user_id = e.user_id AND u.feature = $2
WHERE e.user_id = $1`

	decrementSQL = `
UPDATE entitlement_usage
SET count = GREATEST(count - $3, 0)
WHERE user_id = $1 AND feature = $2
RETURNING count`

	recordExistsSQL = `SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_id = $1)`

	deleteRecordSQL = `DELETE FROM entitlements WHERE user_id = $1`

	listLiveSQL = `
SELECT user_id FROM entitlements
WHERE NOT deleted AND user_id > $1
ORDER BY user_id
LIMIT $2`
)
