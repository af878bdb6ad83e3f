// Package logger builds *slog.Logger instances with functional options and a
// handler decorator that injects request scoped values (request id, user id)
// from context.Context into every record.
//
// Usage
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "quotakit"),
//		logger.WithContextExtractors(requestid.LoggerExtractor(), auth.LogExtractor),
//	)
//	log.LogAttrs(ctx, slog.LevelInfo, "tier changed",
//		logger.UserID(uid), logger.Transition("free", "pro"))
//
// Attribute helpers (Error, UserID, Feature, Tier, ...) keep key names
// consistent across packages.
package logger
