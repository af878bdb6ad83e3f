// Package requestid correlates log records of one HTTP request.
//
// Middleware assigns each request an id (reusing a valid incoming
// X-Request-ID unless configured otherwise), keeps it in the context and
// returns it in the response header. LoggerExtractor plugs the id into
// pkg/logger so every record written with the request context carries it:
//
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
//	r.Use(requestid.NewMiddleware(requestid.WithTrustIncoming(false)))
package requestid
