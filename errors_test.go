package quill

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := error(&NotFoundError{Table: "users", Key: 7})
	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "users")
	assert.Contains(t, err.Error(), "7")

	wrapped := fmt.Errorf("saving: %w", err)
	assert.True(t, IsNotFound(wrapped))

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestConnectionError(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	err := error(&ConnectionError{Op: "select users", Err: cause})
	assert.True(t, IsConnectionError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "select users")
	assert.False(t, IsConnectionError(cause))
}

func TestValidationError(t *testing.T) {
	t.Parallel()
	err := error(&ValidationError{Table: "users", Field: "email", Err: errors.New("required")})
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "users.email")
	assert.False(t, IsValidationError(errors.New("other")))
}
