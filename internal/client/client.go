// Package client talks to the food analysis HTTP API. Failures are returned
// as apperrors: ServerRejected when a response arrived with an error status,
// Timeout or Network when none did, BadRequest when the request could not be built.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/franckalain/foodanalysis/internal/apperrors"
	"github.com/franckalain/foodanalysis/internal/models"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

const (
	fieldImage  = "foodImage"
	fieldWeight = "weight"
)

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    *models.AnalysisRecord `json:"data"`
	Error   string                 `json:"error"`
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient exposes the underlying client, e.g. for transport mocking.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Health performs the liveness check. A status other than "OK" is an error.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return nil, apperrors.NewBadRequest(err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rejected(resp)
	}

	var hs HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		return nil, apperrors.NewServerRejected(resp.StatusCode, "malformed health response")
	}
	if hs.Status != "OK" {
		return nil, apperrors.NewServerRejected(resp.StatusCode, "Server health check failed")
	}
	return &hs, nil
}

// Latest queries the result store. It returns apperrors.ErrNoData when the
// server has nothing yet.
func (c *Client) Latest(ctx context.Context) (*models.AnalysisRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/latest-analysis", nil)
	if err != nil {
		return nil, apperrors.NewBadRequest(err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, rejected(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperrors.NewServerRejected(resp.StatusCode, "malformed response")
	}
	if !env.Success || env.Data == nil {
		return nil, apperrors.ErrNoData
	}
	return env.Data, nil
}

// Upload is an image to submit.
type Upload struct {
	Filename    string
	ContentType string // guessed from the extension when empty
	Data        []byte
}

// ReadUpload loads an image file from disk.
func ReadUpload(path string) (Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, err
	}
	return Upload{Filename: filepath.Base(path), Data: data}, nil
}

// Analyze submits an image and weight to POST /api/analyze-food.
func (c *Client) Analyze(ctx context.Context, up Upload, weight float64) (*models.AnalysisRecord, error) {
	body, contentType, err := encodeForm(up, weight)
	if err != nil {
		return nil, apperrors.NewBadRequest(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze-food", body)
	if err != nil {
		return nil, apperrors.NewBadRequest(err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, rejected(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperrors.NewServerRejected(resp.StatusCode, "malformed response")
	}
	if !env.Success || env.Data == nil {
		return nil, apperrors.NewServerRejected(resp.StatusCode, "Server returned unsuccessful response")
	}
	return env.Data, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(up Upload, weight float64) (io.Reader, string, error) {
	if up.Filename == "" {
		return nil, "", errors.New("upload has no file name")
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(up.Filename)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		fieldImage, quoteEscaper.Replace(up.Filename)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(fieldWeight, strconv.FormatFloat(weight, 'f', -1, 64)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return resp, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeout(err)
	}
	return apperrors.NewNetwork(err)
}

func rejected(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return apperrors.NewServerRejected(resp.StatusCode, "")
	}
	return apperrors.NewServerRejected(resp.StatusCode, body.Error)
}
