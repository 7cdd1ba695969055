package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCodeMatchingThroughWrapping(t *testing.T) {
	err := Unauthorized("session expired", nil)
	wrapped := fmt.Errorf("restore failed: %w", err)

	assert.True(t, IsUnauthorized(wrapped))
	assert.False(t, IsNetwork(wrapped))
	assert.True(t, Is(wrapped, "UNAUTHORIZED"))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Network("could not reach the server", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsNetwork(err))
}

func TestTooManyRequestsCarriesWaitTime(t *testing.T) {
	err := TooManyRequests("slow down", 4*time.Second)

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, 4*time.Second, appErr.WaitTime)
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(Network("offline", nil)))
	assert.True(t, Recoverable(TooManyRequests("slow down", time.Second)))
	assert.True(t, Recoverable(BadRequest("empty message", nil)))
	assert.True(t, Recoverable(Conflict("already sold")))
	assert.False(t, Recoverable(Unauthorized("expired", nil)))
	assert.False(t, Recoverable(Internal("boom", nil)))
	assert.False(t, Recoverable(errors.New("plain")))
}
