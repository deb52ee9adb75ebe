package params

// Bag holds the bound values of a single criterion, keyed by param key.
type Bag struct {
	values map[string]Value
	keys   []string
}

// NewBag creates an empty bag.
func NewBag() *Bag {
	return &Bag{values: make(map[string]Value)}
}

// Add binds v under key, replacing any earlier value.
func (b *Bag) Add(key string, v Value) *Bag {
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = v
	return b
}

// Has reports whether key is bound. Optional params should be checked
// with Has before reading them.
func (b *Bag) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Value returns the value bound under key.
func (b *Bag) Value(key string) (Value, error) {
	v, ok := b.values[key]
	if !ok {
		return nil, &MissingParamError{Key: key}
	}
	return v, nil
}

// Keys returns bound keys in insertion order.
func (b *Bag) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Len returns the number of bound values.
func (b *Bag) Len() int {
	return len(b.keys)
}

// Get returns the value bound under key as the concrete kind T.
//
//	segments, err := params.Get[params.StringArray](bag, "segment")
func Get[T Value](b *Bag, key string) (T, error) {
	var zero T
	v, err := b.Value(key)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Want: zero.Type(), Got: v.Type()}
	}
	return typed, nil
}
