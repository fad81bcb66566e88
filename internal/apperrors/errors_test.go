package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeExtraction(t *testing.T) {
	assert.Equal(t, CodeNotFound, Code(NotFound("approval", "a1")))
	assert.Equal(t, CodeValidation, Code(InvalidInput("reason", "is required")))
	assert.Equal(t, CodeInternal, Code(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", AlreadyDecided("approved"))
	assert.Equal(t, CodeAlreadyDecided, Code(wrapped))
	assert.True(t, IsCode(wrapped, CodeAlreadyDecided))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "store unavailable")

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, Retryable(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{MissingApprover("legal_review"), http.StatusBadRequest},
		{NotFound("approval", "x"), http.StatusNotFound},
		{AlreadyDecided("rejected"), http.StatusConflict},
		{NotAuthorized("nope"), http.StatusForbidden},
		{Unavailable(errors.New("down")), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}
