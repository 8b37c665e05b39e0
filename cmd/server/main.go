package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/franckalain/foodanalysis/internal/analysis"
	"github.com/franckalain/foodanalysis/internal/config"
	"github.com/franckalain/foodanalysis/internal/imagestore"
	"github.com/franckalain/foodanalysis/internal/logger"
	"github.com/franckalain/foodanalysis/internal/metrics"
	"github.com/franckalain/foodanalysis/internal/ml"
	"github.com/franckalain/foodanalysis/internal/notify"
	"github.com/franckalain/foodanalysis/internal/server"
	"github.com/franckalain/foodanalysis/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize result store
	st, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}
	defer st.Close()

	images, err := imagestore.New(ctx, cfg.Images, cfg.Server.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to create image store: %w", err)
	}

	// Initialize ML service
	model, err := ml.NewModel(cfg.ML)
	if err != nil {
		return fmt.Errorf("failed to create ML model: %w", err)
	}
	if err := model.Load(ctx); err != nil {
		return fmt.Errorf("failed to load ML model: %w", err)
	}
	if c, ok := model.(io.Closer); ok {
		defer c.Close()
	}

	m := metrics.New()
	hub := notify.NewHub(log,
		notify.WithSnapshot(st.Latest),
		notify.WithClientGauge(func(n int64) { m.WebsocketClients.Set(float64(n)) }))

	notifiers := []notify.Notifier{hub}
	if cfg.MQTT.Enabled() {
		pub, err := notify.NewMQTTPublisher(cfg.MQTT, log)
		if err != nil {
			log.Warn("mqtt publishing disabled", "error", err)
		} else {
			defer pub.Close()
			notifiers = append(notifiers, pub)
		}
	}

	svc := analysis.NewService(st, images, model, log,
		analysis.WithNotifiers(notifiers...),
		analysis.WithMetrics(m),
		analysis.WithMaxImageBytes(cfg.Server.MaxUploadBytes))
	defer svc.Close()

	srv := server.New(svc, images, log,
		server.WithHub(hub),
		server.WithMetrics(m),
		server.WithStaticDir(cfg.Server.StaticDir))

	log.Info("food analysis server configured",
		"addr", cfg.Addr(),
		"store", cfg.Store.Type,
		"images", cfg.Images.Type,
		"model", model.Name(),
		"mqtt", cfg.MQTT.Enabled())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx, cfg.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		return hub.Close()
	})
	return g.Wait()
}
