package service

import (
	"errors"
	"fmt"
)

// RequestError reports a malformed request: missing table, group or
// criteria, or an unsupported criteria envelope version.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return "invalid request: " + e.Message
}

// ConflictError reports a segment code already used by another segment.
type ConflictError struct {
	Code string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("Segment with code '%s' already exists", e.Code)
}

// CodeInUseError reports a code change blocked by a referencing segment.
type CodeInUseError struct {
	Code         string // Code being changed
	ReferencedBy string // First referencing segment
}

func (e *CodeInUseError) Error() string {
	return fmt.Sprintf("Error updating segment code, other segment '%s' references it", e.ReferencedBy)
}

// IsRequestError returns true if err is a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// IsConflict returns true if err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsCodeInUse returns true if err is a CodeInUseError.
func IsCodeInUse(err error) bool {
	var ce *CodeInUseError
	return errors.As(err, &ce)
}
