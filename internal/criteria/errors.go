package criteria

import (
	"errors"
	"fmt"
)

// EmptyCriteriaError is returned when a table has no registered criteria.
type EmptyCriteriaError struct {
	Table string
}

func (e *EmptyCriteriaError) Error() string {
	return fmt.Sprintf("Unknown table or empty criteria list for table '%s'", e.Table)
}

// InvalidCriteriaError is returned when a tree leaf cannot be compiled:
// unknown key, invalid param value, missing required param, or a
// malformed node.
type InvalidCriteriaError struct {
	Key     string // Criterion key, when known
	Message string
	Err     error // Underlying params error, if any
}

func (e *InvalidCriteriaError) Error() string {
	return e.Message
}

func (e *InvalidCriteriaError) Unwrap() error {
	return e.Err
}

// UnknownOperatorError is returned for operator nodes other than AND/OR.
type UnknownOperatorError struct {
	Operator string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("Unknown operator '%s', expected AND or OR", e.Operator)
}

// IsEmptyCriteria returns true if err is an EmptyCriteriaError.
func IsEmptyCriteria(err error) bool {
	var ee *EmptyCriteriaError
	return errors.As(err, &ee)
}

// IsInvalidCriteria returns true if err describes a malformed tree,
// including unknown operators.
// Uses errors.As to handle wrapped errors.
func IsInvalidCriteria(err error) bool {
	var ie *InvalidCriteriaError
	if errors.As(err, &ie) {
		return true
	}
	var ue *UnknownOperatorError
	return errors.As(err, &ue)
}

func invalidf(key string, format string, args ...any) *InvalidCriteriaError {
	return &InvalidCriteriaError{Key: key, Message: fmt.Sprintf(format, args...)}
}
