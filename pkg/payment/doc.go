// Package payment connects a payment gateway to the entitlement ledger.
//
// A Provider (Razorpay is the only implementation) creates payment links,
// cancels subscriptions and verifies inbound webhooks. Service applies the
// resulting events to the ledger:
//
//	provider, err := payment.NewRazorpay(cfg)
//	svc := payment.NewService(ledger, provider, cfg,
//		payment.WithEventLog(payment.NewRedisEventLog(rdb, "quotakit:", cfg.EventInFlight, cfg.EventRetain)),
//		payment.WithLocker(payment.NewRedisLocker(rdb, "quotakit:", cfg.LockTTL, 5*time.Second)),
//	)
//	res, err := svc.HandleWebhook(ctx, body, r.Header.Get("X-Razorpay-Signature"), r.Header.Get("X-Razorpay-Event-Id"))
//
// Webhook handling is idempotent per event id: the EventLog claims an id
// before it is processed and marks it done afterwards, and a failed attempt
// releases the claim so the gateway's retry is processed again. Every
// ledger write for one user runs under the Locker.
package payment
