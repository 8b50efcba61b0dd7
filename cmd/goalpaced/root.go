package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/goalpace/badge"
	"github.com/xraph/goalpace/forecast"
	"github.com/xraph/goalpace/id"
	"github.com/xraph/goalpace/recalc"
	"github.com/xraph/goalpace/scheduler"
)

// cli carries state resolved in PersistentPreRunE.
type cli struct {
	v         *viper.Viper
	settings  settings
	logger    *slog.Logger
	closeLogs func() error
}

func newRootCmd() *cobra.Command {
	c := &cli{v: newViper()}

	root := &cobra.Command{
		Use:          "goalpaced",
		Short:        "Goal progress snapshots, recalculation and forecasts",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, _ := cmd.Flags().GetString("config")
			s, err := loadSettings(c.v, cfgFile)
			if err != nil {
				return err
			}
			lvl, _ := parseLevel(s.LogLevel)
			c.settings = s
			c.logger, c.closeLogs = setupLogger(s.LogFile, lvl)
			slog.SetDefault(c.logger)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.closeLogs != nil {
				return c.closeLogs()
			}
			return nil
		},
	}
	if err := bindFlags(c.v, root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(
		c.runCmd(),
		c.migrateCmd(),
		c.forecastCmd(),
		c.recalcCmd(),
		c.adjustCmd(),
	)
	return root
}

// withApp builds the app for one command invocation.
func (c *cli) withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx, c.settings, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			c.logger.Warn("close backends", slog.String("error", err.Error()))
		}
	}()
	return fn(a)
}

func (c *cli) runCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the snapshot and recalculation schedulers until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := setupMetrics()
			if err != nil {
				return err
			}
			defer func() { _ = provider.Shutdown(context.Background()) }()

			return c.withApp(ctx, func(a *app) error {
				if migrate {
					if err := a.store.Migrate(ctx); err != nil {
						return err
					}
				}
				return c.serve(ctx, a)
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run migrations before starting")
	return cmd
}

// serve starts every scheduler and the metrics endpoint, and stops them all
// when ctx is done.
func (c *cli) serve(ctx context.Context, a *app) error {
	scheds := a.schedulers()
	g, gctx := errgroup.WithContext(ctx)

	for i, s := range scheds {
		if err := s.Start(gctx); err != nil {
			stopAll(context.WithoutCancel(ctx), scheds[:i], c.logger)
			return err
		}
		c.logger.Info("scheduler started",
			slog.String("job_name", s.Name()),
			slog.String("holder", s.Holder()),
		)
	}

	if addr := c.settings.MetricsAddr; addr != "" {
		srv := metricsServer(addr, a.store.Ping)
		g.Go(func() error { return serve(gctx, srv, c.logger) })
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
		defer cancel()

		stopAll(stopCtx, scheds, c.logger)
		a.exts.EmitShutdown(stopCtx)
		return nil
	})

	return g.Wait()
}

func stopAll(ctx context.Context, scheds []*scheduler.Scheduler, logger *slog.Logger) {
	for _, s := range scheds {
		if err := s.Stop(ctx); err != nil {
			logger.Warn("scheduler stop",
				slog.String("job_name", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app) error {
				if err := a.store.Migrate(cmd.Context()); err != nil {
					return err
				}
				c.logger.Info("migrations applied", slog.String("store", c.settings.StoreDriver))
				return nil
			})
		},
	}
}

// forecastOutput is what the forecast command prints.
type forecastOutput struct {
	Forecast forecast.Result `json:"forecast"`
	Badge    badge.Badge     `json:"badge"`
}

func (c *cli) forecastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast <goal-id>",
		Short: "Print the forecast and status badge of a goal as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goalID, err := id.ParseGoalID(args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				res, err := a.forecast.Forecast(cmd.Context(), goalID)
				if err != nil {
					return err
				}
				g, err := a.store.GetGoal(cmd.Context(), goalID)
				if err != nil {
					return err
				}
				return writeJSON(cmd, forecastOutput{
					Forecast: res,
					Badge:    a.badges.Classify(badge.InputFor(g)),
				})
			})
		},
	}
}

func (c *cli) recalcCmd() *cobra.Command {
	var kind, entityID string
	cmd := &cobra.Command{
		Use:   "recalc [goal-id]",
		Short: "Recalculate one goal, the goals touched by a CRM entity, or all goals",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withApp(ctx, func(a *app) error {
				if len(args) == 1 {
					goalID, err := id.ParseGoalID(args[0])
					if err != nil {
						return err
					}
					progress, err := a.recalc.Recalculate(ctx, goalID)
					if err != nil {
						return err
					}
					return writeJSON(cmd, map[string]any{"goal_id": goalID.String(), "progress": progress})
				}

				var (
					sum recalc.Summary
					err error
				)
				if kind != "" {
					sum, err = a.recalc.RecalculateForEntity(ctx, recalc.EntityKind(kind), entityID)
				} else {
					sum, err = a.recalc.RecalculateAll(ctx)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd, sum)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "entity-kind", "", "changed CRM entity kind (deal, activity, task)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "changed CRM entity id")
	return cmd
}

func (c *cli) adjustCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "adjust <goal-id> <progress>",
		Short: "Set a goal's progress by hand and stop auto-calculating it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			goalID, err := id.ParseGoalID(args[0])
			if err != nil {
				return err
			}
			progress, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("progress: %w", err)
			}
			return c.withApp(cmd.Context(), func(a *app) error {
				g, err := a.recalc.Adjust(cmd.Context(), goalID, progress, reason)
				if err != nil {
					return err
				}
				return writeJSON(cmd, g)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "justification for the adjustment (required)")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
