// Package httpserver runs the HTTP API with graceful shutdown.
//
// Run blocks until its context is cancelled, then drains requests within the
// shutdown timeout. Start hooks run before the listener opens and stop hooks
// after draining, which is where background workers are started and stopped:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithStartHook(func(ctx context.Context) error { return sweeper.Start(ctx) }),
//		httpserver.WithStopHook(func(context.Context) error { sweeper.Stop(); return nil }),
//	)
//	err := srv.Run(ctx, router)
//
// HealthHandler serves liveness and readiness probes as JSON.
package httpserver
