package main

import (
	"appointment-notifier/config"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type cli struct {
	cfg     *config.Config
	logger  *slog.Logger
	envFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "appointment-notifier",
		Short:         "Watches an appointment page and notifies Telegram subscribers of new dates.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg

			// Initialize structured logger
			c.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))
			slog.SetDefault(c.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Optional dotenv file read before the environment.")

	root.AddCommand(c.serveCmd(), c.checkCmd())
	return root
}

func (c *cli) serveCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the Telegram webhook and manual trigger, and checks the page on a schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("interval") {
				c.cfg.CheckInterval = interval
			}
			if c.cfg.CheckInterval > 0 {
				go a.monitor.Run(ctx, c.cfg.CheckInterval)
			} else {
				c.logger.Info("Scheduled checks disabled, relying on external trigger")
			}

			return a.server.ListenAndServe(ctx, c.cfg.Port)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Check interval, overriding CHECK_INTERVAL. Zero disables scheduled checks.")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Runs a single watcher invocation and exits; non-zero exit on failure.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.monitor.Check(ctx)
		},
	}
}
