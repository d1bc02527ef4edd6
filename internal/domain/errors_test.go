package domain

import (
	"errors"
	"testing"
)

func TestFilterError_UnwrapsSentinel(t *testing.T) {
	err := NewFilterError(FilterNotFilterable, "age", "")
	if !errors.Is(err, ErrInvalidFilterQuery) {
		t.Fatal("expected errors.Is(err, ErrInvalidFilterQuery)")
	}
	if errors.Is(err, ErrInvalidPatch) {
		t.Fatal("filter error must not match ErrInvalidPatch")
	}

	var fe *FilterError
	if !errors.As(err, &fe) {
		t.Fatal("expected errors.As to FilterError")
	}
	if fe.Reason != FilterNotFilterable || fe.Path != "age" {
		t.Errorf("unexpected error: %+v", fe)
	}
}

func TestFilterError_Message(t *testing.T) {
	err := NewFilterError(FilterTypeMismatch, "age", "expected number")
	want := `invalid filter query: type_mismatch at "age": expected number`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestPatchError_UnwrapsSentinel(t *testing.T) {
	err := NewPatchError(PatchLengthMismatch, "", "2 paths, 1 values")
	if !errors.Is(err, ErrInvalidPatch) {
		t.Fatal("expected errors.Is(err, ErrInvalidPatch)")
	}
	want := "invalid patch: length_mismatch: 2 paths, 1 values"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
