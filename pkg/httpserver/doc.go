// Package httpserver runs the API's http.Server with graceful shutdown and
// exposes liveness and readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.WithShutdownHook("notify", dispatcher.Close),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// Run returns after the context is cancelled or SIGINT/SIGTERM arrives and
// in-flight requests have drained. Shutdown hooks then run within the same
// ShutdownTimeout.
package httpserver
