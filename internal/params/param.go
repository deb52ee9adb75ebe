package params

import (
	"fmt"
)

// Type names a param kind. The string form is used in blueprints and CUE catalogs.
type Type string

const (
	TypeString      Type = "string"
	TypeNumber      Type = "number"
	TypeDecimal     Type = "decimal"
	TypeBoolean     Type = "boolean"
	TypeDateTime    Type = "datetime"
	TypeStringArray Type = "string_array"
	TypeNumberArray Type = "number_array"
)

// DefaultGroup is the UI group used when a param does not declare one.
const DefaultGroup = "General"

// Param is the schema of a single criterion parameter.
type Param interface {
	Key() string
	Type() Type
	Required() bool
	Default() any
	Blueprint() Blueprint

	// IsValid checks raw decoded data (JSON-decoded, possibly json.Number).
	IsValid(data any) Validation

	// Bind validates data and converts it into a Value.
	// Returns *InvalidDataError if IsValid fails.
	Bind(data any) (Value, error)
}

// Definition holds the attributes shared by every param kind.
type Definition struct {
	Key      string
	Label    string
	Help     string
	Required bool
	Default  any
	Group    string // UI grouping only
}

func (d Definition) group() string {
	if d.Group == "" {
		return DefaultGroup
	}
	return d.Group
}

func (d Definition) blueprint(t Type) Blueprint {
	return Blueprint{
		Type:     t,
		Required: d.Required,
		Default:  d.Default,
		Help:     d.Help,
		Label:    d.Label,
		Group:    d.group(),
	}
}

// Blueprint is the JSON-serializable schema of a param for UI forms.
type Blueprint struct {
	Type      Type   `json:"type"`
	Required  bool   `json:"required"`
	Default   any    `json:"default"`
	Help      string `json:"help"`
	Label     string `json:"label"`
	Group     string `json:"group"`
	Available any    `json:"available,omitempty"`
}

// Validation is the outcome of Param.IsValid. The zero value is valid.
type Validation struct {
	Message string
}

// OK reports whether validation passed.
func (v Validation) OK() bool {
	return v.Message == ""
}

func invalid(format string, args ...any) Validation {
	return Validation{Message: fmt.Sprintf(format, args...)}
}

// bind runs IsValid and converts on success.
func bind(p Param, data any, convert func() Value) (Value, error) {
	if v := p.IsValid(data); !v.OK() {
		return nil, &InvalidDataError{Key: p.Key(), Message: v.Message}
	}
	return convert(), nil
}
