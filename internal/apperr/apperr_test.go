package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"adminpanel/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("update product: %w", apperr.NotFound("product not found"))

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(wrapped))
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(errors.New("boom")))
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(nil))
}

func TestErrorIsMatchesKindSentinel(t *testing.T) {
	err := apperr.Storage("could not save product", errors.New("disk full"))

	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), "disk full")
}

func TestStorageUnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Storage("could not list products", cause)

	assert.ErrorIs(t, err, cause)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation_error", apperr.KindValidation.String())
	assert.Equal(t, "forbidden", apperr.KindAuthorization.String())
	assert.Equal(t, "internal_error", apperr.KindUnknown.String())
}
