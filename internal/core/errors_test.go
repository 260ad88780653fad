package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"upload", NewUploadError("bad type", nil), http.StatusUnsupportedMediaType},
		{"not found", NewNotFoundError("session not found"), http.StatusNotFound},
		{"transport", NewTransportError("api down", nil), http.StatusBadGateway},
		{"run failed", NewRunFailedError("run failed", nil), http.StatusBadGateway},
		{"run timeout", NewRunTimeoutError("too slow", nil), http.StatusGatewayTimeout},
		{"configuration", NewConfigurationError("missing key", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatusCode())
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError("failed to send message", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transport_error")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrorKindUpload, KindOf(NewUploadError("nope", nil)))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	// Kind survives wrapping.
	wrapped := fmt.Errorf("handling request: %w", NewRunTimeoutError("too slow", nil))
	assert.Equal(t, ErrorKindRunTimeout, KindOf(wrapped))
}
