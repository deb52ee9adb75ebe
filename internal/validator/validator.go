// Package validator gates segment SQL before it is persisted or simulated.
//
// The checks are regular expressions over SQL text, not a SQL parser.
// They reject the common mutating statements and references to
// administrator-configured tables in table position, but they do not
// see through CTEs, views, schema-qualified names or SQL built
// dynamically by database functions. Treat the validator as one layer
// of defense; database grants remain the real boundary.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ValidationError is returned when a query is rejected.
type ValidationError struct {
	Operation string // Set for forbidden operations
	Table     string // Set for forbidden tables
}

func (e *ValidationError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("Query contains forbidden operation: %s.", e.Operation)
	}
	return fmt.Sprintf("Query contains forbidden table: %s.", e.Table)
}

// IsValidationError returns true if err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type operation struct {
	name    string
	pattern *regexp.Regexp
}

var operations = []operation{
	{"INSERT", regexp.MustCompile("(?im)\\bINSERT\\s+INTO\\s+[\\w`\"]+")},
	{"UPDATE", regexp.MustCompile("(?im)\\bUPDATE\\s+([\\w`\"]+)\\s+SET\\b")},
	{"DELETE", regexp.MustCompile("(?im)\\bDELETE\\s+FROM\\s+([\\w`\"]+)")},
}

type forbiddenTable struct {
	name    string
	pattern *regexp.Regexp
}

// QueryValidator rejects mutating SQL and forbidden table references.
// Safe for concurrent use.
type QueryValidator struct {
	mu     sync.RWMutex
	tables []forbiddenTable
}

// New creates a validator forbidding the given tables.
func New(tables ...string) *QueryValidator {
	v := &QueryValidator{}
	v.AddForbiddenTables(tables...)
	return v
}

// AddForbiddenTables appends tables to the forbidden list. Names are
// trimmed; empty names are ignored.
func (v *QueryValidator) AddForbiddenTables(tables ...string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, t := range tables {
		name := strings.TrimSpace(t)
		if name == "" {
			continue
		}
		pattern := regexp.MustCompile("(?im)\\b(?:FROM|JOIN|UPDATE|INTO|DELETE\\s+FROM)\\s+[`\"]?" +
			regexp.QuoteMeta(name) + "[`\"]?\\b")
		v.tables = append(v.tables, forbiddenTable{name: name, pattern: pattern})
	}
}

// ForbiddenTables returns the configured table names.
func (v *QueryValidator) ForbiddenTables() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.tables))
	for _, t := range v.tables {
		names = append(names, t.name)
	}
	return names
}

// Validate returns a *ValidationError if sql mutates data or reads a
// forbidden table.
func (v *QueryValidator) Validate(sql string) error {
	for _, op := range operations {
		if op.pattern.MatchString(sql) {
			return &ValidationError{Operation: op.name}
		}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, t := range v.tables {
		if t.pattern.MatchString(sql) {
			return &ValidationError{Table: t.name}
		}
	}
	return nil
}
