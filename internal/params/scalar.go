package params

// StringParam accepts a single string.
type StringParam struct {
	Definition
}

// NewStringParam creates a string param.
func NewStringParam(def Definition) *StringParam {
	return &StringParam{Definition: def}
}

func (p *StringParam) Key() string          { return p.Definition.Key }
func (p *StringParam) Type() Type           { return TypeString }
func (p *StringParam) Required() bool       { return p.Definition.Required }
func (p *StringParam) Default() any         { return p.Definition.Default }
func (p *StringParam) Blueprint() Blueprint { return p.blueprint(TypeString) }

func (p *StringParam) IsValid(data any) Validation {
	s, ok := data.(string)
	if !ok {
		return invalid("Missing data for String")
	}
	if p.Definition.Required && s == "" {
		return invalid("Empty value for required String")
	}
	return Validation{}
}

func (p *StringParam) Bind(data any) (Value, error) {
	return bind(p, data, func() Value { return String(data.(string)) })
}

// NumberParam accepts a single integer.
type NumberParam struct {
	Definition
}

// NewNumberParam creates a number param.
func NewNumberParam(def Definition) *NumberParam {
	return &NumberParam{Definition: def}
}

func (p *NumberParam) Key() string          { return p.Definition.Key }
func (p *NumberParam) Type() Type           { return TypeNumber }
func (p *NumberParam) Required() bool       { return p.Definition.Required }
func (p *NumberParam) Default() any         { return p.Definition.Default }
func (p *NumberParam) Blueprint() Blueprint { return p.blueprint(TypeNumber) }

func (p *NumberParam) IsValid(data any) Validation {
	if _, ok := asInt64(data); !ok {
		return invalid("Invalid number format - '%v'", data)
	}
	return Validation{}
}

func (p *NumberParam) Bind(data any) (Value, error) {
	return bind(p, data, func() Value {
		n, _ := asInt64(data)
		return Number(n)
	})
}

// DecimalParam accepts an arbitrary precision decimal, given as a JSON
// number or a numeric string.
type DecimalParam struct {
	Definition
}

// NewDecimalParam creates a decimal param.
func NewDecimalParam(def Definition) *DecimalParam {
	return &DecimalParam{Definition: def}
}

func (p *DecimalParam) Key() string          { return p.Definition.Key }
func (p *DecimalParam) Type() Type           { return TypeDecimal }
func (p *DecimalParam) Required() bool       { return p.Definition.Required }
func (p *DecimalParam) Default() any         { return p.Definition.Default }
func (p *DecimalParam) Blueprint() Blueprint { return p.blueprint(TypeDecimal) }

func (p *DecimalParam) IsValid(data any) Validation {
	if _, ok := asDecimal(data); !ok {
		return invalid("Invalid decimal format - '%v'", data)
	}
	return Validation{}
}

func (p *DecimalParam) Bind(data any) (Value, error) {
	return bind(p, data, func() Value {
		d, _ := asDecimal(data)
		return Decimal{Amount: d}
	})
}

// BooleanParam accepts true or false.
type BooleanParam struct {
	Definition
}

// NewBooleanParam creates a boolean param.
func NewBooleanParam(def Definition) *BooleanParam {
	return &BooleanParam{Definition: def}
}

func (p *BooleanParam) Key() string          { return p.Definition.Key }
func (p *BooleanParam) Type() Type           { return TypeBoolean }
func (p *BooleanParam) Required() bool       { return p.Definition.Required }
func (p *BooleanParam) Default() any         { return p.Definition.Default }
func (p *BooleanParam) Blueprint() Blueprint { return p.blueprint(TypeBoolean) }

func (p *BooleanParam) IsValid(data any) Validation {
	if _, ok := data.(bool); !ok {
		return invalid("Invalid boolean value - '%v'", data)
	}
	return Validation{}
}

func (p *BooleanParam) Bind(data any) (Value, error) {
	return bind(p, data, func() Value { return Boolean(data.(bool)) })
}

// DateTimeParam accepts an RFC 3339 timestamp, with optional fractional seconds.
type DateTimeParam struct {
	Definition
}

// NewDateTimeParam creates a datetime param.
func NewDateTimeParam(def Definition) *DateTimeParam {
	return &DateTimeParam{Definition: def}
}

func (p *DateTimeParam) Key() string          { return p.Definition.Key }
func (p *DateTimeParam) Type() Type           { return TypeDateTime }
func (p *DateTimeParam) Required() bool       { return p.Definition.Required }
func (p *DateTimeParam) Default() any         { return p.Definition.Default }
func (p *DateTimeParam) Blueprint() Blueprint { return p.blueprint(TypeDateTime) }

func (p *DateTimeParam) IsValid(data any) Validation {
	if _, ok := asDateTime(data); !ok {
		return invalid("Invalid date format - '%v'", data)
	}
	return Validation{}
}

func (p *DateTimeParam) Bind(data any) (Value, error) {
	return bind(p, data, func() Value {
		t, _ := asDateTime(data)
		return DateTime{Time: t}
	})
}
