package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/httpserver"
	"github.com/jackira01/scort-web-site-sub002/pkg/logger"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
)

func newServeCmd() *cobra.Command {
	var noSweep bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the expiry sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.stores.EnsureIndexes(ctx); err != nil {
					return err
				}

				opts := []httpserver.Option{httpserver.WithLogger(a.log.With(logger.Component("http")))}
				if !noSweep {
					opts = append(opts,
						httpserver.WithStartHook(func(ctx context.Context) error {
							a.sweeper.Start(ctx)
							return nil
						}),
						httpserver.WithStopHook(func(context.Context) error {
							a.sweeper.Stop()
							return nil
						}),
					)
				}
				srv := httpserver.NewFromConfig(a.cfg.HTTP, opts...)
				return srv.Run(ctx, a.handler().Handler())
			})
		},
	}
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "do not schedule the expiry sweep in this process")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var statsOnly bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the expiry sweep once and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if statsOnly {
					stats, err := a.sweeper.Stats(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), stats)
				}
				report, err := a.sweeper.RunNow(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().BoolVar(&statsOnly, "stats", false, "only count pending work")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Expire overdue invoices and apply paid invoices that never reached their profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				expired, err := a.invoices.ExpireOverdue(ctx)
				if err != nil {
					return err
				}
				report, err := a.reconciler.RetryUnapplied(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"expired": expired,
					"applied": report.Applied,
					"failed":  report.Failed,
				})
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	var (
		file        string
		defaultPlan string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import plan and upgrade definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadSeed(file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.stores.EnsureIndexes(ctx); err != nil {
					return err
				}
				report, err := a.catalog.Import(ctx, seed)
				if err != nil {
					return err
				}
				if defaultPlan != "" {
					code := catalog.NormalizeCode(defaultPlan)
					if _, err := a.catalog.Plan(ctx, code); err != nil {
						return fmt.Errorf("default plan %s: %w", code, err)
					}
					if err := a.stores.Settings.Set(ctx, settings.KeyDefaultPlanCode, code); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file (defaults to the built-in catalog)")
	cmd.Flags().StringVar(&defaultPlan, "default-plan", "", "also store this plan code as the default plan")
	return cmd
}

func loadSeed(file string) (catalog.Seed, error) {
	if file == "" {
		return catalog.DefaultSeed()
	}
	return catalog.LoadSeedFile(file)
}
