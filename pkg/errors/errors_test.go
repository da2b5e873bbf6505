package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("ledger: %w", Clone(ErrInsufficientPoints, "need 30 points, have 10"))

	appErr := FromError(wrapped)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInsufficientPoints.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "need 30 points, have 10", appErr.Message)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateSentinel(t *testing.T) {
	clone := Clone(ErrModerationRejected, "message blocked: insult")
	assert.Equal(t, "message blocked: insult", clone.Message)
	assert.Equal(t, "message blocked", ErrModerationRejected.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("authorize: %w", Clone(ErrForbidden, "not a member"))
	assert.True(t, Is(err, ErrForbidden))
	assert.False(t, Is(err, ErrNotFound))
	assert.False(t, Is(nil, ErrForbidden))
	assert.False(t, Is(sql.ErrNoRows, ErrNotFound))
}
