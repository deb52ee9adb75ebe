package params

import (
	"errors"
	"fmt"
)

// InvalidDataError is returned when data bound to a param fails validation.
type InvalidDataError struct {
	Key     string
	Message string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid data for param %q: %s", e.Key, e.Message)
}

// TypeMismatchError is returned when two values of different kinds are compared
// or a bag accessor finds a value of an unexpected kind.
type TypeMismatchError struct {
	Want Type
	Got  Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("cannot compare %s with %s", e.Got, e.Want)
}

// MissingParamError is returned by Bag accessors for absent keys.
type MissingParamError struct {
	Key string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("param [%s] not provided", e.Key)
}

// IsTypeMismatch returns true if err is a TypeMismatchError.
// Uses errors.As to handle wrapped errors.
func IsTypeMismatch(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}

// IsInvalidData returns true if err is an InvalidDataError.
func IsInvalidData(err error) bool {
	var ie *InvalidDataError
	return errors.As(err, &ie)
}
