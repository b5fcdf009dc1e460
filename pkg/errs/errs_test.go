package errs_test

import (
	"errors"
	"testing"

	"taxidispatch/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errReason = errors.New("order already taken")

func TestValidationError(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := errs.NewValidationError("phone", "is required")

		assert.Equal(t, "validation failed: phone: is required", err.Error())
		require.ErrorIs(t, err, errs.ErrValidation)
		assert.Equal(t, "is required", errs.Reason(err))
	})

	t.Run("with cause", func(t *testing.T) {
		err := errs.NewValidationErrorWithCause("status", "unknown value", errReason)

		assert.Equal(t, "validation failed: status: unknown value (cause: order already taken)", err.Error())
		require.ErrorIs(t, err, errs.ErrValidation)
		require.ErrorIs(t, err, errReason)
	})
}

func TestConflictError(t *testing.T) {
	err := errs.NewConflictError("order", "already claimed", errReason)

	require.ErrorIs(t, err, errs.ErrConflict)
	require.ErrorIs(t, err, errReason)
	assert.NotErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, "order already taken", errs.Reason(err))
}

func TestNotFoundError(t *testing.T) {
	err := errs.NewNotFoundError("driver", "42")

	assert.Equal(t, "not found: driver 42", err.Error())
	require.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, "driver not found", errs.Reason(err))
}

func TestInvalidStateError(t *testing.T) {
	err := errs.NewInvalidStateError("order", "abc", "COMPLETED", "cancel", nil)

	assert.Equal(t, "invalid state: cannot cancel order abc in state COMPLETED", err.Error())
	require.ErrorIs(t, err, errs.ErrInvalidState)
	assert.Equal(t, "order is COMPLETED", errs.Reason(err))
}

func TestWrappedErrorsKeepTheirKind(t *testing.T) {
	wrapped := errors.Join(errors.New("claim"), errs.NewConflictError("order", "taken", errReason))

	require.ErrorIs(t, wrapped, errs.ErrConflict)
	require.ErrorIs(t, wrapped, errReason)
	assert.Equal(t, "order already taken", errs.Reason(wrapped))
}

func TestReasonFallsBackToMessage(t *testing.T) {
	assert.Equal(t, "boom", errs.Reason(errors.New("boom")))
}
