package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/franckalain/foodanalysis/internal/analysis"
	"github.com/franckalain/foodanalysis/internal/imagestore"
	"github.com/franckalain/foodanalysis/internal/metrics"
	"github.com/franckalain/foodanalysis/internal/notify"
	"github.com/franckalain/foodanalysis/web"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	service *analysis.Service
	images  imagestore.Store
	hub     *notify.Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
	static  fs.FS
}

type Option func(*Server)

// WithHub serves websocket pushes on /ws.
func WithHub(h *notify.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithMetrics serves the registry on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithStaticDir serves the page from dir instead of the embedded copy.
func WithStaticDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.static = os.DirFS(dir)
		}
	}
}

// WithStaticFS serves the page from fsys.
func WithStaticFS(fsys fs.FS) Option {
	return func(s *Server) { s.static = fsys }
}

func New(service *analysis.Service, images imagestore.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		service: service,
		images:  images,
		logger:  logger,
		static:  web.Static(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the full route table wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/analyze-food", only(http.MethodPost, http.HandlerFunc(s.handleAnalyze)))
	mux.Handle("/api/latest-analysis", only(http.MethodGet, http.HandlerFunc(s.handleLatest)))
	mux.Handle("/api/health", only(http.MethodGet, http.HandlerFunc(s.handleHealth)))
	mux.Handle("/uploads/{filename}", only(http.MethodGet, http.HandlerFunc(s.handleUpload)))
	if s.hub != nil {
		mux.Handle("/ws", only(http.MethodGet, s.hub))
	}
	if s.metrics != nil {
		mux.Handle("/metrics", only(http.MethodGet, s.metrics.Handler()))
	}
	mux.Handle("/", only(http.MethodGet, s.staticHandler()))

	var h http.Handler = mux
	h = securityHeaders(h)
	h = cors(h)
	h = requestLogger(s.logger, h)
	h = recoverer(s.logger, h)
	return h
}

// Start listens on addr and serves until ctx is done, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
