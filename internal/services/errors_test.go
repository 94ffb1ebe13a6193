package services_test

import (
	"errors"
	"fmt"
	"testing"

	"biru/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSignalIncomplete, "analysis", "load signals", "energy channel missing", base)
	if !errors.Is(err, services.ErrSignalIncomplete) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "analysis", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
		fatal     bool
	}{
		{services.ErrSignalIncomplete, true, false},
		{services.ErrDispatchTimeout, true, false},
		{services.ErrTransient, true, false},
		{services.ErrInsufficientSegments, false, false},
		{services.ErrNoAvailableSlot, false, false},
		{services.ErrValidation, false, true},
		{services.ErrInvalidTransition, false, true},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("context: %w", tc.err)
		if got := services.Retryable(wrapped); got != tc.retryable {
			t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
		if got := services.Fatal(wrapped); got != tc.fatal {
			t.Errorf("Fatal(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}

func TestFatalNilError(t *testing.T) {
	if services.Fatal(nil) {
		t.Fatal("nil error must not be fatal")
	}
}
