package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error is unwrapped", func(t *testing.T) {
		err := fmt.Errorf("login: %w", NewInvalidCredential())
		de := ToDomainError(err)
		require.NotNil(t, de)
		assert.Equal(t, CodeInvalidCredential, de.Code)
		assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		de := ToDomainError(errors.New("boom"))
		assert.Equal(t, CodeInternal, de.Code)
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	})
}

func TestDependencyErrorHidesCause(t *testing.T) {
	cause := errors.New("mongo: connection refused")
	err := NewDependencyError(cause)

	de := ToDomainError(err)
	assert.Equal(t, CodeDependency, de.Code)
	assert.NotContains(t, de.Message, "mongo")
	assert.ErrorIs(t, err, cause)
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewInvalidOrExpired(), CodeInvalidOrExpired))
	assert.False(t, HasCode(NewInvalidOrExpired(), CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	de := ToDomainError(NewRateLimited("slow down", 42))
	assert.Equal(t, http.StatusTooManyRequests, de.HTTPStatus)
	assert.Equal(t, int64(42), de.Details["retry_after_seconds"])
}
