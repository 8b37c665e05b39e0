package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/franckalain/foodanalysis/internal/client"
	"github.com/franckalain/foodanalysis/internal/logger"
	"github.com/franckalain/foodanalysis/internal/simulator"
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
		interval  time.Duration
		samples   string
		once      bool
		timeout   time.Duration
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "Food analysis equipment simulator",
		Long: `Simulates the weighing station: every interval it picks a food, varies its
weight by up to 20%, selects a sample image and submits both to the server.

Examples:
  simulator                  # run continuously every 10 seconds
  simulator --once           # run a single capture and exit
  simulator samples          # write the SVG sample images`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logger.Config{Level: logLevel, Format: "text", Output: "stderr"})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := simulator.DefaultConfig()
			cfg.SamplesDir = samples
			cfg.SubmitTimeout = timeout
			equipment := simulator.New(client.New(serverURL, client.WithTimeout(timeout)), cfg, log)

			log.Info("initializing food analysis equipment simulator", "server", serverURL)
			if err := equipment.Initialize(ctx); err != nil {
				log.Error("make sure the server is running", "server", serverURL, "error", err)
				return err
			}

			if once {
				if _, err := equipment.CaptureAndAnalyze(ctx); err != nil {
					return err
				}
				log.Info("single simulation complete")
				return nil
			}
			return equipment.Run(ctx, interval)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&samples, "samples", simulator.DefaultSamplesDir, "sample images directory")
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "food analysis server URL")
	cmd.Flags().DurationVar(&interval, "interval", simulator.DefaultInterval, "time between simulations")
	cmd.Flags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	cmd.Flags().BoolVarP(&once, "once", "o", false, "run a single simulation and exit")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(samplesCommand(&samples))
	return cmd
}

func samplesCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "Write SVG sample food images",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := simulator.CreateSamples(*dir)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), "created", p)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "You can also add real food photos (.jpg, .png, .gif) to", *dir)
			return nil
		},
	}
}
