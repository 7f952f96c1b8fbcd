// Package sweep reconciles stored profiles with the passage of time.
//
// A Sweeper periodically hides profiles whose plan has lapsed and moves
// expired upgrade grants into the profile's upgrade history. It can also
// expire overdue invoices and retry paid invoices that were never applied.
//
//	s := sweep.New(profiles,
//		sweep.WithConfig(cfg),
//		sweep.WithMetrics(sweep.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//	s.Start(ctx)
//	defer s.Stop()
//
// Only one run executes at a time. RunNow joins a run that is already in
// flight, and a scheduled tick that finds one running is skipped.
package sweep
