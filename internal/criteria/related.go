package criteria

// IsRelated reports whether every leaf of input has a matching leaf in
// candidate: same criterion key, same param key, same value kind and
// equal value.
func IsRelated(input, candidate []Leaf) (bool, error) {
	for _, in := range input {
		found := false
		for _, c := range candidate {
			if in.Criterion != c.Criterion || in.Param != c.Param {
				continue
			}
			if in.Value.Type() != c.Value.Type() {
				continue
			}
			eq, err := in.Value.Equal(c.Value)
			if err != nil {
				return false, err
			}
			if eq {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}
