package state

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	apperrors "github.com/conneroisu/roster/internal/errors"
)

// Error codes for state failures.
const (
	CodeDuplicateSlot      = "ERR_DUPLICATE_SLOT"
	CodeSlotNotFound       = "ERR_SLOT_NOT_FOUND"
	CodeDisciplineMismatch = "ERR_DISCIPLINE_MISMATCH"
	CodeInvalidSpec        = "ERR_INVALID_SLOT_SPEC"
	CodeLockTimeout        = "ERR_LOCK_TIMEOUT"
	CodeLockCancelled      = "ERR_LOCK_CANCELLED"
)

// Sentinels for errors.Is. Matching is by code, so every error returned by
// this package matches exactly one of them.
var (
	ErrDuplicateSlot      = apperrors.NewStateError(CodeDuplicateSlot, "duplicate slot")
	ErrSlotNotFound       = apperrors.NewStateError(CodeSlotNotFound, "slot not found")
	ErrDisciplineMismatch = apperrors.NewStateError(CodeDisciplineMismatch, "discipline mismatch")
	ErrInvalidSpec        = apperrors.NewStateError(CodeInvalidSpec, "invalid slot spec")
	ErrLockTimeout        = apperrors.NewStateError(CodeLockTimeout, "lock wait timed out")
	ErrLockCancelled      = apperrors.NewStateError(CodeLockCancelled, "lock wait cancelled")
)

func duplicateSlotError(t reflect.Type) error {
	return apperrors.NewStateError(
		CodeDuplicateSlot,
		fmt.Sprintf("slot for type %s registered more than once", t),
	).WithComponent("state").WithContext("type", t.String())
}

func slotNotFoundError(t reflect.Type) error {
	return apperrors.NewStateError(
		CodeSlotNotFound,
		fmt.Sprintf("no slot registered for type %s", t),
	).WithComponent("state").WithContext("type", t.String())
}

func disciplineMismatchError(t reflect.Type, have, want Discipline) error {
	return apperrors.NewStateError(
		CodeDisciplineMismatch,
		fmt.Sprintf("slot for type %s is %s, not %s", t, have, want),
	).WithComponent("state").
		WithContext("type", t.String()).
		WithContext("discipline", have.String())
}

func lockError(slot string, mode AccessMode, cause error) error {
	code, msg := CodeLockCancelled, "lock wait cancelled"
	if errors.Is(cause, context.DeadlineExceeded) {
		code, msg = CodeLockTimeout, "lock wait timed out"
	}
	err := apperrors.NewStateError(code, fmt.Sprintf("%s on %s (%s)", msg, slot, mode)).
		WithComponent("state").
		WithCause(cause).
		WithContext("slot", slot).
		WithContext("mode", mode.String())
	// A timed-out wait may succeed when retried; a cancelled caller is gone.
	err.Recoverable = code == CodeLockTimeout
	return err
}
