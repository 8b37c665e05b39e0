// Package simulator fabricates weighing-station readings and submits them to
// the analysis server.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/client"
	"github.com/franckalain/foodanalysis/internal/models"
	"github.com/franckalain/foodanalysis/internal/nutrition"
)

const (
	DefaultSamplesDir = "sample-images"
	DefaultInterval   = 10 * time.Second

	// weight variation around the reference, as a fraction (±20%)
	weightSpread = 0.4
)

var sampleImagePattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|svg)$`)

// API is the part of the server API the equipment uses.
type API interface {
	Health(ctx context.Context) (*client.HealthStatus, error)
	Analyze(ctx context.Context, up client.Upload, weight float64) (*models.AnalysisRecord, error)
}

type Config struct {
	SamplesDir    string
	WeighDelay    time.Duration
	CaptureDelay  time.Duration
	SubmitTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SamplesDir:    DefaultSamplesDir,
		WeighDelay:    time.Second,
		CaptureDelay:  1500 * time.Millisecond,
		SubmitTimeout: 10 * time.Second,
	}
}

// Equipment is one simulated weighing station.
type Equipment struct {
	api    API
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	rng   *rand.Rand
	count int
}

type Option func(*Equipment)

// WithRand makes food, weight and image selection deterministic.
func WithRand(r *rand.Rand) Option {
	return func(e *Equipment) { e.rng = r }
}

func New(api API, cfg Config, logger *slog.Logger, opts ...Option) *Equipment {
	if cfg.SamplesDir == "" {
		cfg.SamplesDir = DefaultSamplesDir
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultConfig().SubmitTimeout
	}
	e := &Equipment{
		api:    api,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Count is the number of capture cycles started.
func (e *Equipment) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Initialize creates the samples directory and checks that the server is up.
func (e *Equipment) Initialize(ctx context.Context) error {
	if _, err := os.Stat(e.cfg.SamplesDir); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(e.cfg.SamplesDir, 0o755); err != nil {
			return fmt.Errorf("failed to create samples directory: %w", err)
		}
		e.logger.Info("created samples directory; add food images there for a better simulation",
			"dir", e.cfg.SamplesDir)
	}
	return e.CheckServer(ctx)
}

// CheckServer performs the liveness check.
func (e *Equipment) CheckServer(ctx context.Context) error {
	if _, err := e.api.Health(ctx); err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	e.logger.Info("connected to food analysis server")
	return nil
}

func (e *Equipment) RandomProfile() nutrition.Profile {
	profiles := nutrition.Profiles()
	e.mu.Lock()
	defer e.mu.Unlock()
	return profiles[e.rng.IntN(len(profiles))]
}

// RandomWeight perturbs ref by up to ±20% and rounds to whole grams.
func (e *Equipment) RandomWeight(ref float64) float64 {
	e.mu.Lock()
	u := (e.rng.Float64() - 0.5) * weightSpread
	e.mu.Unlock()
	return math.Round(ref * (1 + u))
}

// PickImage returns a random sample image, or the placeholder when the
// samples directory has none.
func (e *Equipment) PickImage() (string, error) {
	images, err := SampleImages(e.cfg.SamplesDir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return WritePlaceholder(e.cfg.SamplesDir)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return images[e.rng.IntN(len(images))], nil
}

// SampleImages lists usable images in dir, sorted by name. A missing dir
// yields no images.
func SampleImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && sampleImagePattern.MatchString(entry.Name()) {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// CaptureAndAnalyze runs one weigh, capture and submit cycle.
func (e *Equipment) CaptureAndAnalyze(ctx context.Context) (*models.AnalysisRecord, error) {
	e.mu.Lock()
	e.count++
	n := e.count
	e.mu.Unlock()

	log := e.logger.With("cycle", n)
	log.Info("starting food capture and analysis")

	log.Info("weighing food")
	if err := sleep(ctx, e.cfg.WeighDelay); err != nil {
		return nil, err
	}
	profile := e.RandomProfile()
	weight := e.RandomWeight(profile.ReferenceWeight)
	log.Info("detected weight", "grams", weight)

	log.Info("capturing food image")
	if err := sleep(ctx, e.cfg.CaptureDelay); err != nil {
		return nil, err
	}
	imagePath, err := e.PickImage()
	if err != nil {
		log.Error("failed to select image", "error", err)
		return nil, err
	}
	log.Info("using image", "path", imagePath)

	up, err := client.ReadUpload(imagePath)
	if err != nil {
		log.Error("failed to read image", "error", err)
		return nil, err
	}

	log.Info("transmitting data to analysis server")
	sctx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	defer cancel()

	rec, err := e.api.Analyze(sctx, up, weight)
	if err != nil {
		log.Error("capture and analysis failed", errorFields(err)...)
		return nil, err
	}

	log.Info("analysis complete",
		"id", rec.ID,
		"food_type", rec.Analysis.FoodType,
		"confidence", fmt.Sprintf("%.1f%%", rec.Analysis.Confidence*100),
		"calories", rec.Analysis.Nutrition.Calories)
	return rec, nil
}

// Run repeats capture cycles every interval until ctx is done. Cycle
// failures are logged and do not stop the loop.
func (e *Equipment) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	e.logger.Info("starting equipment simulator", "interval", interval)

	for {
		if _, err := e.CaptureAndAnalyze(ctx); err != nil && ctx.Err() == nil {
			e.logger.Warn("cycle failed, continuing", "error", err)
		}
		if ctx.Err() != nil {
			break
		}
		e.logger.Info("waiting before next simulation", "interval", interval)
		if err := sleep(ctx, interval); err != nil {
			break
		}
	}

	e.logger.Info("equipment simulator stopped", "cycles", e.Count())
	return nil
}

func errorFields(err error) []any {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return []any{"error", err}
	}
	fields := []any{"error", appErr.Message, "kind", string(appErr.Type)}
	if appErr.Internal != nil {
		fields = append(fields, "cause", appErr.Internal.Error())
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
