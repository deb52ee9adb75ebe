package segment

import (
	"errors"
	"fmt"
)

// SegmentError wraps a SQL execution failure.
type SegmentError struct {
	// Op is the engine operation that failed, e.g. "count".
	Op string

	// Query is the SQL text that was executed.
	Query string

	Err error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %s failed: %v", e.Op, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// IsSegmentError returns true if err is a SegmentError.
func IsSegmentError(err error) bool {
	var se *SegmentError
	return errors.As(err, &se)
}
