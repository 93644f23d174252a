package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesCategoryAndReason(t *testing.T) {
	listingMissing := NotFound("listing not found").WithReason("LISTING_NOT_FOUND")
	txMissing := NotFound("transaction not found").WithReason("TRANSACTION_NOT_FOUND")

	wrapped := fmt.Errorf("lookup: %w", listingMissing)

	assert.True(t, errors.Is(wrapped, listingMissing))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, txMissing))
	assert.False(t, errors.Is(wrapped, ErrForbidden))
}

func TestError_WithReasonDoesNotMutateReceiver(t *testing.T) {
	base := Forbidden("nope")
	derived := base.WithReason("NOT_OWNER")

	assert.Empty(t, base.Reason)
	assert.Equal(t, "NOT_OWNER", derived.Reason)
}

func TestPersistence_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Persistence("failed to save listing", cause)

	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")
}

func TestError_ToJSON(t *testing.T) {
	err := InvalidTransition("transaction cannot be accepted").WithReason("BAD_STATE")

	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(err.ToJSON(), &body))

	assert.False(t, body.Success)
	assert.Equal(t, CodeInvalidTransition, body.Error.Code)
	assert.Equal(t, "BAD_STATE", body.Error.Reason)
	assert.Equal(t, "transaction cannot be accepted", body.Error.Message)
}

func TestAs(t *testing.T) {
	assert.Nil(t, As(errors.New("plain")))
	assert.NotNil(t, As(fmt.Errorf("x: %w", Conflict("dup"))))
}
