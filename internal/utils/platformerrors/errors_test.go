package platformerrors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      int
	}{
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeConflict, http.StatusConflict},
		{ErrorTypeInternal, http.StatusInternalServerError},
		{ErrorType("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorTypeToHTTPStatus(tt.errorType))
		})
	}
}

func TestNewError_CarriesRequestIDAndCause(t *testing.T) {
	cause := errors.New("disk full")
	ctx := ContextWithRequestID(context.Background(), "req-1")

	err := NewError(ctx, LayerHandler, ErrorTypeInternal, "export failed", cause, "abc")

	assert.Equal(t, "req-1", err.GetRequestID())
	assert.Equal(t, "abc", err.GetUUID())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "export failed")

	generated := NewError(context.Background(), LayerRoute, ErrorTypeValidation, "bad", nil, "")
	assert.NotEmpty(t, generated.GetUUID())
	assert.Empty(t, generated.GetRequestID())
}

func TestGetPlatformError_FindsWrapped(t *testing.T) {
	inner := NewError(context.Background(), LayerHandler, ErrorTypeNotFound, "job missing", nil, "u-1")
	wrapped := fmt.Errorf("status: %w", inner)

	got := GetPlatformError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.UUID)
	assert.Nil(t, GetPlatformError(errors.New("plain")))
}

func TestLogError_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := ContextWithRequestID(context.Background(), "req-9")
	err := NewErrorWithContext(ctx, LayerHandler, ErrorTypeInternal, "bake failed", errors.New("oom"), "e-1",
		map[string]any{"path": "/v1/generate"})

	LogError(logger, err)
	LogError(logger, nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "e-1", entry["error_uuid"])
	assert.Equal(t, "INTERNAL", entry["error_type"])
	assert.Equal(t, "req-9", entry["request_id"])
	assert.Equal(t, "/v1/generate", entry["path"])
	assert.Equal(t, "oom", entry["error"])
	assert.Equal(t, "bake failed", entry["message"])
}
