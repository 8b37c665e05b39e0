package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesTypeAndCode(t *testing.T) {
	err := NewInvalidWeight("abc")
	assert.ErrorIs(t, err, ErrInvalidWeight)
	assert.NotErrorIs(t, err, ErrMissingFile)

	wrapped := fmt.Errorf("ingest: %w", err)
	assert.ErrorIs(t, wrapped, ErrInvalidWeight)

	// same code, different type
	assert.NotErrorIs(t, New(ErrorTypeInternal, CodeInvalidWeight, "x"), ErrInvalidWeight)
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternal(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, strings.HasPrefix(err.Error(), "internal: Internal server error"))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", ErrMissingFile, http.StatusBadRequest},
		{"not found", ErrNoData, http.StatusNotFound},
		{"internal", NewInternal(errors.New("x")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NewUnsupportedMediaType("text/plain")), http.StatusBadRequest},
		{"rejected keeps status", NewServerRejected(http.StatusConflict, ""), http.StatusConflict},
		{"network has none", NewNetwork(errors.New("refused")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	assert.Equal(t, "Valid weight is required", PublicMessage(NewInvalidWeight("-1")))
	assert.Equal(t, "Internal server error", PublicMessage(NewInternal(errors.New("secret path /var/db"))))
	assert.Equal(t, "Internal server error", PublicMessage(errors.New("raw")))
	assert.Equal(t, "Only image files are allowed.", PublicMessage(NewUnsupportedMediaType("application/pdf")))
}

func TestServerRejectedMessage(t *testing.T) {
	err := NewServerRejected(http.StatusBadRequest, "No image file uploaded")
	assert.Equal(t, "Server error: 400 - No image file uploaded", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.ErrorIs(t, err, ErrServerRejected)

	err = NewServerRejected(http.StatusBadGateway, "")
	assert.Equal(t, "Server error: 502 - Bad Gateway", err.Message)
}

func TestPayloadTooLargeMessage(t *testing.T) {
	assert.Equal(t, ErrPayloadTooLarge.Message, NewPayloadTooLarge(5<<20).Message)

	custom := NewPayloadTooLarge(1024)
	assert.Equal(t, "File too large. Maximum size is 1024 bytes.", custom.Message)
	assert.ErrorIs(t, custom, ErrPayloadTooLarge)
}

func TestLogFields(t *testing.T) {
	err := NewServerRejected(http.StatusTeapot, "nope")
	fields := err.LogFields()
	assert.Contains(t, fields, "status")
	assert.Contains(t, fields, CodeServerRejected)
	assert.NotContains(t, fields, "internal_error")

	fields = NewBadRequest(errors.New("bad url")).LogFields()
	assert.Contains(t, fields, "internal_error")
	assert.Contains(t, fields, "bad url")
}

func TestSourceRecordsCaller(t *testing.T) {
	err := New(ErrorTypeValidation, CodeMissingFile, "x")
	assert.Contains(t, err.Source, "errors_test.go")
}
