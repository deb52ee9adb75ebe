package params

// StringArrayParam accepts a non-empty list of strings, optionally
// restricted to a closed set of options.
type StringArrayParam struct {
	Definition
	options map[string]string // value -> label; nil accepts anything
}

// NewStringArrayParam creates a string array param. options maps accepted
// values to labels; pass nil to accept any string.
func NewStringArrayParam(def Definition, options map[string]string) *StringArrayParam {
	return &StringArrayParam{Definition: def, options: options}
}

func (p *StringArrayParam) Key() string    { return p.Definition.Key }
func (p *StringArrayParam) Type() Type     { return TypeStringArray }
func (p *StringArrayParam) Required() bool { return p.Definition.Required }
func (p *StringArrayParam) Default() any   { return p.Definition.Default }

// Options returns the accepted values, or nil.
func (p *StringArrayParam) Options() map[string]string {
	return p.options
}

func (p *StringArrayParam) Blueprint() Blueprint {
	b := p.blueprint(TypeStringArray)
	if len(p.options) > 0 {
		b.Available = p.options
	}
	return b
}

func (p *StringArrayParam) IsValid(data any) Validation {
	values, ok := asStrings(data)
	if !ok || len(values) == 0 {
		return invalid("Missing data for StringArray")
	}
	if p.options != nil {
		for _, v := range values {
			if _, ok := p.options[v]; !ok {
				return invalid("Out of options value - '%s'", v)
			}
		}
	}
	return Validation{}
}

func (p *StringArrayParam) Bind(data any) (Value, error) {
	return bind(p, data, func() Value {
		values, _ := asStrings(data)
		return StringArray{Values: values, Options: p.options}
	})
}

// NumberArrayParam accepts a non-empty list of integers, optionally
// restricted to a closed set of labelled options.
type NumberArrayParam struct {
	Definition
	options map[int64]string
}

// NewNumberArrayParam creates a number array param. options maps accepted
// numbers to labels; pass nil to accept any integer.
func NewNumberArrayParam(def Definition, options map[int64]string) *NumberArrayParam {
	return &NumberArrayParam{Definition: def, options: options}
}

func (p *NumberArrayParam) Key() string    { return p.Definition.Key }
func (p *NumberArrayParam) Type() Type     { return TypeNumberArray }
func (p *NumberArrayParam) Required() bool { return p.Definition.Required }
func (p *NumberArrayParam) Default() any   { return p.Definition.Default }

// Options returns the accepted numbers with labels, or nil.
func (p *NumberArrayParam) Options() map[int64]string {
	return p.options
}

func (p *NumberArrayParam) Blueprint() Blueprint {
	b := p.blueprint(TypeNumberArray)
	if len(p.options) > 0 {
		b.Available = p.options
	}
	return b
}

func (p *NumberArrayParam) IsValid(data any) Validation {
	values, bad, ok := asInt64s(data)
	if !ok {
		return invalid("Missing data for NumberArray")
	}
	if bad >= 0 {
		return invalid("Invalid number format - '%v'", data.([]any)[bad])
	}
	if len(values) == 0 {
		return invalid("Missing data for NumberArray")
	}
	if p.options != nil {
		for _, v := range values {
			if _, ok := p.options[v]; !ok {
				return invalid("Out of options value - '%d'", v)
			}
		}
	}
	return Validation{}
}

func (p *NumberArrayParam) Bind(data any) (Value, error) {
	return bind(p, data, func() Value {
		values, _, _ := asInt64s(data)
		return NumberArray{Values: values, Options: p.options}
	})
}
