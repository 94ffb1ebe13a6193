package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSignalIncomplete marks analysis attempted before the upstream
	// signal channels finished arriving. Retryable.
	ErrSignalIncomplete = errors.New("signal bundle incomplete")
	// ErrInsufficientSegments marks a selection pass that produced zero
	// clips even after relaxation. The asset is held for re-analysis.
	ErrInsufficientSegments = errors.New("insufficient segments")
	// ErrInvalidTransition marks a lifecycle transition request that does
	// not match the transition table. Rejected with no mutation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNoAvailableSlot marks a clip the scheduler could not place within
	// the horizon. The clip stays READY and is retried next pass.
	ErrNoAvailableSlot = errors.New("no available slot")
	// ErrDispatchTimeout marks a dispatched work item that missed its
	// completion deadline. Retried up to the configured attempt cap.
	ErrDispatchTimeout = errors.New("dispatch timeout")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the workflow retry policy applies to err.
// Incomplete signals and dispatch timeouts are retried with backoff;
// everything else either holds the entity or fails it outright.
func Retryable(err error) bool {
	return errors.Is(err, ErrSignalIncomplete) ||
		errors.Is(err, ErrDispatchTimeout) ||
		errors.Is(err, ErrTransient)
}

// Fatal reports whether err should move the entity to FAILED immediately,
// bypassing the retry policy.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInsufficientSegments) || errors.Is(err, ErrNoAvailableSlot) {
		return false
	}
	return !Retryable(err)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
