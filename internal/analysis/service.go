// Package analysis turns a submitted image and weight into an AnalysisRecord
// and hands it to the result store.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/imagestore"
	"github.com/franckalain/foodanalysis/internal/metrics"
	"github.com/franckalain/foodanalysis/internal/ml"
	"github.com/franckalain/foodanalysis/internal/models"
	"github.com/franckalain/foodanalysis/internal/notify"
	"github.com/franckalain/foodanalysis/internal/nutrition"
	"github.com/franckalain/foodanalysis/internal/store"
)

const (
	// DefaultMaxImageBytes is the upload cap (5 MiB).
	DefaultMaxImageBytes int64 = 5 << 20

	// FieldImage and FieldWeight are the multipart field names.
	FieldImage  = "foodImage"
	FieldWeight = "weight"

	uploadsPath     = "/uploads/"
	notifyTimeout   = 10 * time.Second
	notifyQueueSize = 16
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// preferred extensions for media types with several registered ones
var mediaTypeExts = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Image is an uploaded file as received.
type Image struct {
	OriginalName string
	ContentType  string
	Data         []byte
}

// Submission is one ingestion request. Image is nil when no file was sent.
type Submission struct {
	Image  *Image
	Weight string
}

// Service implements ingestion.
type Service struct {
	store     store.Store
	images    imagestore.Store
	model     ml.Model
	notifiers []notify.Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	ids       *IDSource
	now       func() time.Time
	maxBytes  int64

	// notifications run on their own goroutine, after the response
	mu      sync.Mutex
	closed  bool
	queue   chan *models.AnalysisRecord
	drained chan struct{}
}

// Option configures a Service.
type Option func(*Service)

func WithNotifiers(n ...notify.Notifier) Option {
	return func(s *Service) { s.notifiers = append(s.notifiers, n...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxImageBytes overrides the 5 MiB cap.
func WithMaxImageBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.ids = NewIDSource(now)
	}
}

func NewService(st store.Store, images imagestore.Store, model ml.Model, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		images:   images,
		model:    model,
		logger:   logger,
		now:      time.Now,
		maxBytes: DefaultMaxImageBytes,
	}
	s.ids = NewIDSource(s.now)
	for _, opt := range opts {
		opt(s)
	}
	if len(s.notifiers) > 0 {
		s.queue = make(chan *models.AnalysisRecord, notifyQueueSize)
		s.drained = make(chan struct{})
		go s.dispatch()
	}
	return s
}

// Close delivers queued notifications and stops the dispatcher. Analyze
// still works afterwards but no longer notifies.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.queue != nil {
		close(s.queue)
	}
	s.mu.Unlock()

	if s.drained != nil {
		<-s.drained
	}
	return nil
}

// MaxImageBytes is the configured upload cap.
func (s *Service) MaxImageBytes() int64 {
	return s.maxBytes
}

// Latest returns the record held by the result store.
func (s *Service) Latest(ctx context.Context) (*models.AnalysisRecord, error) {
	return s.store.Latest(ctx)
}

// Validate checks a submission in order: file present, image media type,
// size cap, then weight. It returns the parsed weight.
func (s *Service) Validate(sub Submission) (float64, error) {
	if sub.Image == nil {
		return 0, apperrors.ErrMissingFile
	}
	if !IsImageType(sub.Image.ContentType) {
		return 0, apperrors.NewUnsupportedMediaType(sub.Image.ContentType)
	}
	if int64(len(sub.Image.Data)) > s.maxBytes {
		return 0, apperrors.NewPayloadTooLarge(s.maxBytes)
	}
	return ParseWeight(sub.Weight)
}

// Analyze validates sub, stores the image, derives the analysis and replaces
// the latest record. The store is untouched when validation fails.
func (s *Service) Analyze(ctx context.Context, sub Submission) (*models.AnalysisRecord, error) {
	weight, err := s.Validate(sub)
	if err != nil {
		s.count(metrics.ResultRejected, err)
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	img := sub.Image
	storedName := StoredName(FieldImage, img.OriginalName, img.ContentType, now)

	if err := s.images.Save(ctx, storedName, img.ContentType, img.Data); err != nil {
		return nil, s.internal(err, "failed to store image")
	}

	class, err := s.model.Classify(ctx, img.Data, img.ContentType)
	if err != nil {
		return nil, s.internal(err, "failed to classify image")
	}

	profile, err := nutrition.Lookup(class.FoodType)
	if err != nil {
		return nil, s.internal(err, "classifier returned an unknown food")
	}

	record := &models.AnalysisRecord{
		ID: s.ids.Next(),
		Image: models.ImageInfo{
			StoredName:   storedName,
			OriginalName: img.OriginalName,
			SizeBytes:    int64(len(img.Data)),
			ServedPath:   path.Join(uploadsPath, storedName),
		},
		WeightGrams: weight,
		Analysis: models.Analysis{
			FoodType:          profile.Name,
			Confidence:        clamp01(class.Confidence),
			Nutrition:         nutrition.Compute(profile, weight),
			HealthSuggestions: profile.Suggestions,
		},
		Timestamp: now,
	}

	if err := s.store.Set(ctx, record); err != nil {
		return nil, s.internal(err, "failed to store analysis")
	}

	s.logger.Info("food analysis stored",
		"id", record.ID,
		"food_type", record.Analysis.FoodType,
		"weight", weight,
		"calories", record.Analysis.Nutrition.Calories,
		"image", storedName,
		"model", s.model.Name())

	if s.metrics != nil {
		s.metrics.IngestTotal.WithLabelValues(metrics.ResultSuccess, "").Inc()
		s.metrics.IngestWeightGrams.Observe(weight)
		s.metrics.ImageBytes.Observe(float64(len(img.Data)))
		s.metrics.LatestRecordID.Set(float64(record.ID))
	}

	s.enqueue(record.Clone())
	return record, nil
}

// enqueue hands record to the dispatcher without blocking. A full queue
// drops the notification; the record is already stored.
func (s *Service) enqueue(record *models.AnalysisRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil || s.closed {
		return
	}

	select {
	case s.queue <- record:
	default:
		s.logger.Warn("notification queue full, dropping", "id", record.ID)
		if s.metrics != nil {
			s.metrics.NotifyErrors.WithLabelValues("queue").Inc()
		}
	}
}

func (s *Service) dispatch() {
	defer close(s.drained)
	for record := range s.queue {
		s.notify(record)
	}
}

func (s *Service) notify(record *models.AnalysisRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, record.Clone()); err != nil {
			s.logger.Warn("notification failed", "notifier", n.Name(), "id", record.ID, "error", err)
			if s.metrics != nil {
				s.metrics.NotifyErrors.WithLabelValues(n.Name()).Inc()
			}
		}
	}
}

func (s *Service) internal(err error, msg string) error {
	appErr := apperrors.NewInternal(fmt.Errorf("%s: %w", msg, err))
	s.logger.Error(msg, appErr.LogFields()...)
	s.count(metrics.ResultError, appErr)
	return appErr
}

func (s *Service) count(result string, err error) {
	if s.metrics == nil {
		return
	}
	code := ""
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	s.metrics.IngestTotal.WithLabelValues(result, code).Inc()
}

// IsImageType reports whether contentType is an image/* media type.
func IsImageType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

// ResolveContentType returns the declared type, or a sniffed one when the
// declaration is missing or generic.
func ResolveContentType(declared string, head []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared
	}
	return http.DetectContentType(head)
}

// ParseWeight accepts a finite number greater than zero.
func ParseWeight(raw string) (float64, error) {
	w, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return 0, apperrors.NewInvalidWeight(raw)
	}
	return w, nil
}

// StoredName builds "<field>-<unixms>-<uuid><ext>". The original extension
// is kept only when it maps to an image type; otherwise ext comes from
// mediaType, so a stored file is never served back as anything but an image.
func StoredName(field, originalName, mediaType string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s%s", field, now.UnixMilli(), uuid.New().String(), imageExt(originalName, mediaType))
}

func imageExt(originalName, mediaType string) string {
	ext := filepath.Ext(filepath.Base(originalName))
	if isImageExt(ext) {
		return ext
	}

	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	if ext, ok := mediaTypeExts[mt]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mt)
	if err != nil {
		return ""
	}
	for _, ext := range exts {
		if isImageExt(ext) {
			return ext
		}
	}
	return ""
}

func isImageExt(ext string) bool {
	return extPattern.MatchString(ext) && IsImageType(mime.TypeByExtension(ext))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
