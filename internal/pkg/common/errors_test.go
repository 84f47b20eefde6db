package common

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithErrorKeepsPredefinedUntouched(t *testing.T) {
	cause := errors.New("job not found")
	ce := ErrNotFound.WithError(cause)

	assert.Equal(t, ErrCodeNotFound, ce.Code)
	assert.Equal(t, http.StatusNotFound, ce.Status)
	assert.True(t, errors.Is(ce, cause))
	assert.Nil(t, ErrNotFound.Err)
}

func TestResponseDetailsOnlyInDebug(t *testing.T) {
	ce := ErrServiceUnavailable.WithError(errors.New("queue is closed"))

	resp := ce.Response(true)
	assert.Equal(t, ErrCodeServiceUnavailable, resp.Code)
	assert.Equal(t, "queue is closed", resp.Details)

	assert.Empty(t, ce.Response(false).Details)
	assert.Empty(t, ErrTooManyRequests.Response(true).Details)
}
