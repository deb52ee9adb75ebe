package query

import (
	"errors"
	"fmt"
	"strings"
)

// NestingError reports a nested segment resolution failure. These are
// definition errors and are never retried.
type NestingError struct {
	// Code identifies the error category.
	Code NestingErrorCode

	// Message is a human-readable description.
	Message string

	// Segments lists the codes involved: missing codes, or the cycle path.
	Segments []string
}

// NestingErrorCode categorizes nesting errors.
type NestingErrorCode string

const (
	// ErrCodeNestedRequired indicates a template with %segment.<code>%
	// tokens was built without resolved nested segments.
	ErrCodeNestedRequired NestingErrorCode = "NESTED_SEGMENTS_REQUIRED"

	// ErrCodeMissingSegments indicates referenced codes do not exist.
	ErrCodeMissingSegments NestingErrorCode = "MISSING_SEGMENTS"

	// ErrCodeCyclicReference indicates a segment references itself,
	// directly or transitively.
	ErrCodeCyclicReference NestingErrorCode = "CYCLIC_SEGMENT_REFERENCE"

	// ErrCodeMaxDepth indicates nesting deeper than the configured limit.
	ErrCodeMaxDepth NestingErrorCode = "MAX_DEPTH_EXCEEDED"
)

func (e *NestingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newRequiredError(codes []string) *NestingError {
	return &NestingError{
		Code:     ErrCodeNestedRequired,
		Message:  "query references nested segments but none were resolved: " + strings.Join(codes, ", "),
		Segments: codes,
	}
}

func newMissingError(codes []string) *NestingError {
	return &NestingError{
		Code:     ErrCodeMissingSegments,
		Message:  "referenced segments not found: " + strings.Join(codes, ", "),
		Segments: codes,
	}
}

func newCycleError(path []string) *NestingError {
	return &NestingError{
		Code:     ErrCodeCyclicReference,
		Message:  "cyclic segment reference: " + strings.Join(path, " -> "),
		Segments: path,
	}
}

func newDepthError(path []string, max int) *NestingError {
	return &NestingError{
		Code:     ErrCodeMaxDepth,
		Message:  fmt.Sprintf("segment nesting deeper than %d: %s", max, strings.Join(path, " -> ")),
		Segments: path,
	}
}

// IsNestingError returns true if err is any NestingError.
func IsNestingError(err error) bool {
	var ne *NestingError
	return errors.As(err, &ne)
}

// IsCyclicReference returns true if err is a cyclic reference error.
// Uses errors.As to handle wrapped errors.
func IsCyclicReference(err error) bool {
	var ne *NestingError
	if errors.As(err, &ne) {
		return ne.Code == ErrCodeCyclicReference
	}
	return false
}

// IsMissingSegments returns true if err reports unknown segment codes.
func IsMissingSegments(err error) bool {
	var ne *NestingError
	if errors.As(err, &ne) {
		return ne.Code == ErrCodeMissingSegments
	}
	return false
}
