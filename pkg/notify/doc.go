// Package notify delivers ledger notices to users.
//
// Dispatcher implements entitlement.Notifier. It renders each notice with a
// Renderer and hands it to worker goroutines, so delivery never blocks a
// consume or a tier change:
//
//	d := notify.NewDispatcher(
//		notify.NewRenderer(catalog, "PraxJobs", baseURL),
//		notify.NewMultiDeliverer(log,
//			notify.NewLogDeliverer(log),
//			notify.NewEmailDeliverer(sender, notify.NewFirebaseResolver(authClient)),
//		),
//	)
//	defer d.Close(ctx)
//	ledger := entitlement.New(store, catalog, entitlement.WithNotifier(d))
package notify
