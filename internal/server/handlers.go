package server

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/franckalain/foodanalysis/internal/analysis"
	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/imagestore"
	"github.com/franckalain/foodanalysis/internal/metrics"
	"github.com/franckalain/foodanalysis/internal/models"
)

const (
	// multipart overhead allowed on top of the image cap
	formOverhead   = 1 << 20
	maxWeightBytes = 1 << 10
	sniffLen       = 512
)

type analysisResponse struct {
	Success bool                   `json:"success"`
	Data    *models.AnalysisRecord `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sub, err := s.readSubmission(w, r)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IngestTotal.WithLabelValues(metrics.ResultRejected, errorCode(err)).Inc()
		}
		s.logger.Warn("rejected upload", "error", err, "remote", r.RemoteAddr)
		writeError(w, err)
		return
	}

	record, err := s.service.Analyze(r.Context(), sub)
	if err != nil {
		if apperrors.HTTPStatus(err) < http.StatusInternalServerError {
			s.logger.Info("rejected upload", "error", err, "remote", r.RemoteAddr)
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analysisResponse{Success: true, Data: record})
}

// readSubmission streams the multipart body. The image part is read up to
// one byte over the cap so oversize files are detected without buffering
// them whole. Only a malformed body is an error here; field-level problems
// are left to the service's validation.
func (s *Server) readSubmission(w http.ResponseWriter, r *http.Request) (analysis.Submission, error) {
	var sub analysis.Submission
	maxBytes := s.service.MaxImageBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)

	mr, err := r.MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return sub, nil
	}
	if err != nil {
		return sub, apperrors.NewMalformedRequest(err)
	}

	sawImage := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return sub, nil
		}
		if err != nil {
			return s.bodyError(sub, sawImage, err)
		}

		switch part.FormName() {
		case analysis.FieldImage:
			if sub.Image != nil || part.FileName() == "" {
				break
			}
			sawImage = true
			data, err := io.ReadAll(io.LimitReader(part, maxBytes+1))
			if err != nil {
				part.Close()
				return s.bodyError(sub, sawImage, err)
			}
			sub.Image = &analysis.Image{
				OriginalName: part.FileName(),
				ContentType:  analysis.ResolveContentType(part.Header.Get("Content-Type"), data[:min(len(data), sniffLen)]),
				Data:         data,
			}
		case analysis.FieldWeight:
			data, err := io.ReadAll(io.LimitReader(part, maxWeightBytes))
			if err != nil {
				part.Close()
				return s.bodyError(sub, sawImage, err)
			}
			sub.Weight = string(data)
		}

		// Drain whatever is left of the part.
		if _, err := io.Copy(io.Discard, part); err != nil {
			part.Close()
			return s.bodyError(sub, sawImage, err)
		}
		part.Close()
	}
}

// bodyError maps a read failure. Hitting the body limit is reported as a
// too-large upload unless an earlier check already fails: no image part at
// all, or an image part that is not an image.
func (s *Server) bodyError(sub analysis.Submission, sawImage bool, err error) (analysis.Submission, error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		if !sawImage {
			return analysis.Submission{}, nil
		}
		if sub.Image != nil && !analysis.IsImageType(sub.Image.ContentType) {
			return sub, nil
		}
		return sub, apperrors.NewPayloadTooLarge(s.service.MaxImageBytes())
	}
	return sub, apperrors.NewMalformedRequest(err)
}

func errorCode(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	record, err := s.service.Latest(r.Context())
	switch {
	case errors.Is(err, apperrors.ErrNoData):
		s.countQuery("empty")
		writeJSON(w, http.StatusOK, analysisResponse{Success: false, Error: apperrors.ErrNoData.Message})
	case err != nil:
		s.countQuery(metrics.ResultError)
		s.logger.Error("failed to read latest analysis", "error", err)
		writeError(w, apperrors.NewInternal(err))
	default:
		s.countQuery("found")
		writeJSON(w, http.StatusOK, analysisResponse{Success: true, Data: record})
	}
}

func (s *Server) countQuery(result string) {
	if s.metrics != nil {
		s.metrics.QueryTotal.WithLabelValues(result).Inc()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "OK", Timestamp: time.Now().UTC()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	obj, err := s.images.Open(r.Context(), name)
	if errors.Is(err, imagestore.ErrNotFound) || errors.Is(err, imagestore.ErrInvalidName) {
		notFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("failed to open image", "name", name, "error", err)
		writeError(w, apperrors.NewInternal(err))
		return
	}
	defer obj.Body.Close()

	// Uploads are only ever served as images, and never run script.
	contentType := obj.ContentType
	if !analysis.IsImageType(contentType) {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Security-Policy", "sandbox; default-src 'none'; style-src 'unsafe-inline'")
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		s.logger.Debug("failed to send image", "name", name, "error", err)
	}
}

// staticHandler serves the page. Unknown paths get the JSON 404.
func (s *Server) staticHandler() http.Handler {
	files := http.FileServerFS(s.static)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}
		info, err := fs.Stat(s.static, name)
		if err != nil || info.IsDir() {
			notFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// only restricts h to one method (plus HEAD for GET). Anything else is a
// missing route.
func only(method string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
			h.ServeHTTP(w, r)
			return
		}
		notFound(w, r)
	})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Route not found"})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), errorResponse{Error: apperrors.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
