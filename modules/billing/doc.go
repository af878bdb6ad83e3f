// Package billing exposes the entitlement ledger and payment service over
// JSON HTTP.
//
// User routes (behind RouterOptions.Authenticate):
//
//	GET    /entitlements                  usage summary
//	POST   /features/{feature}/consume    consume one unit, 402 when exhausted
//	POST   /features/{feature}/release    give one unit back, 204
//	POST   /payment-links                 {"tier": "pro"} -> payment link
//	POST   /payment-links/confirm         gateway callback fields -> summary
//	POST   /subscription/cancel           downgrade to the default tier
//	DELETE /account                       tombstone the account
//
// Public route:
//
//	POST   /webhooks/razorpay             signed gateway webhook
//
// Errors are JSON bodies of the form {"error": {"code", "message"}}; see
// MapError for the status of each domain error.
package billing
