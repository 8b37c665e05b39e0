package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/franckalain/foodanalysis/internal/client"
	"github.com/franckalain/foodanalysis/internal/logger"
	"github.com/franckalain/foodanalysis/internal/poller"
)

func main() {
	_ = godotenv.Load()

	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		serverURL string
		policy    string
		push      bool
		logLevel  string
		cfg       = poller.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:   "display",
		Short: "Terminal display for the latest food analysis",
		Long: `Polls the server for the latest analysis and shows each new record for a
fixed window, the same way the browser page does.

Examples:
  display
  display --server http://kitchen:3000 --policy preempt
  display --display 10s --push=false`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := poller.ParsePolicy(policy)
			if err != nil {
				return err
			}
			cfg.Policy = p

			log, err := logger.New(logger.Config{Level: logLevel, Format: "text", Output: "stderr"})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api := client.New(serverURL, client.WithTimeout(cfg.QueryTimeout))
			display := poller.New(api, poller.NewTextRenderer(cmd.OutOrStdout(), api.BaseURL()), cfg, log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return display.Run(gctx) })
			if push {
				wsURL, err := poller.WebsocketURL(serverURL)
				if err != nil {
					return err
				}
				g.Go(func() error {
					return poller.WatchPush(gctx, wsURL, display, poller.ReconnectDelay, log)
				})
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "food analysis server URL")
	cmd.Flags().StringVar(&policy, "policy", string(poller.PolicyIgnore), "new records while busy: ignore or preempt")
	cmd.Flags().BoolVar(&push, "push", true, "listen on /ws for early poll triggers")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", cfg.Interval, "poll interval")
	cmd.Flags().DurationVar(&cfg.DisplayDuration, "display", cfg.DisplayDuration, "how long results stay on screen")
	cmd.Flags().DurationVar(&cfg.ProcessingDelay, "processing", cfg.ProcessingDelay, "processing indicator duration")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	return cmd
}
