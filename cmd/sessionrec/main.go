package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"sessionrec/internal/config"
	"sessionrec/internal/ledger"
	applog "sessionrec/internal/log"
	"sessionrec/internal/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "sessionrec",
		Short:         "Reconcile training-session calendars against the sales ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "sessionrec.yaml", "Path to config file")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newClientsCmd(&configPath))
	return root
}

func loadRunner(configPath string) (*pipeline.Runner, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	applog.SetLevel(applog.ParseLevel(cfg.LogLevel))

	runner, err := pipeline.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return runner, cfg, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the weekly reconciliation, once or on the configured schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, cfg, err := loadRunner(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				applog.Info("signal received, shutting down", "signal", sig.String())
				cancel()
			}()

			if once || cfg.Schedule == "" {
				if !once {
					applog.Info("no schedule configured, running once")
				}
				_, err := runner.Run(ctx)
				return err
			}

			sched := cron.New()
			_, err = sched.AddFunc(cfg.Schedule, func() {
				if _, err := runner.Run(ctx); err != nil {
					applog.Error("scheduled run failed", err)
				}
			})
			if err != nil {
				return fmt.Errorf("bad schedule %q: %w", cfg.Schedule, err)
			}

			applog.Info("scheduler started", "schedule", cfg.Schedule)
			sched.Start()
			<-ctx.Done()

			stopCtx := sched.Stop()
			<-stopCtx.Done()
			applog.Info("sessionrec exiting")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single reconciliation pass and exit")
	return cmd
}

func newClientsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "Print each client's completed-session count from the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, _, err := loadRunner(*configPath)
			if err != nil {
				return err
			}

			table, err := runner.Store.FindTable(ledger.TableNamePrefix)
			if err != nil {
				return fmt.Errorf("find ledger table: %w", err)
			}
			raw, err := runner.Store.ReadTable(table)
			if err != nil {
				return fmt.Errorf("read %s: %w", table, err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "CLIENT\tSESSIONS")
			for _, c := range ledger.CountSessions(ledger.ParseTable(raw)) {
				fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Sessions)
			}
			return w.Flush()
		},
	}
}
