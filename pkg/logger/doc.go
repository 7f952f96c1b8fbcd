// Package logger builds the process slog.Logger.
//
// New takes functional options; FromConfig applies the environment preset
// (text and debug in development, JSON and info elsewhere) and then the
// LOG_LEVEL and LOG_FORMAT overrides. Context extractors add attributes such
// as the request id or environment to each record:
//
//	log := logger.FromConfig(cfg, env,
//		logger.WithContextExtractors(environment.LoggerExtractor()),
//	)
//	slog.SetDefault(log)
//
// The attribute helpers keep key names consistent across packages.
package logger
