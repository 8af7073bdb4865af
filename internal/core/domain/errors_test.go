package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrPersistence", ErrPersistence, "persistence failure"},
		{"ErrConcurrencyConflict", ErrConcurrencyConflict, "concurrency conflict"},
		{"ErrCorruptSnapshot", ErrCorruptSnapshot, "corrupt snapshot"},
		{"ErrRestoreFailed", ErrRestoreFailed, "restore failed"},
		{"ErrRestoreInProgress", ErrRestoreInProgress, "restore in progress"},
		{"ErrOperationInFlight", ErrOperationInFlight, "operation already in flight"},
		{"ErrNothingToUndo", ErrNothingToUndo, "nothing to undo"},
		{"ErrNothingToRedo", ErrNothingToRedo, "nothing to redo"},
		{"ErrQueueClosed", ErrQueueClosed, "operation queue closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrPersistence,
		ErrConcurrencyConflict,
		ErrCorruptSnapshot,
		ErrRestoreFailed,
		ErrRestoreInProgress,
		ErrOperationInFlight,
		ErrNothingToUndo,
		ErrNothingToRedo,
		ErrQueueClosed,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorsIs_Wrapped(t *testing.T) {
	// Restore failures carry both the restore and persistence sentinels
	err := fmt.Errorf("%w: write plan-1: %w", ErrRestoreFailed, ErrPersistence)

	if !errors.Is(err, ErrRestoreFailed) {
		t.Error("expected wrapped error to match ErrRestoreFailed")
	}
	if !errors.Is(err, ErrPersistence) {
		t.Error("expected wrapped error to match ErrPersistence")
	}
	if errors.Is(err, ErrCorruptSnapshot) {
		t.Error("wrapped restore error should not match ErrCorruptSnapshot")
	}
}
