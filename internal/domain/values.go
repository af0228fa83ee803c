package domain

// Values is a candidate attribute set keyed by field name. After schema normalization each value
// is a string, a []string, or a bool.
type Values map[string]any

func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// StringPtr returns nil for an absent or empty value.
func (v Values) StringPtr(key string) *string {
	s := v.String(key)
	if s == "" {
		return nil
	}
	return &s
}

func (v Values) List(key string) []string {
	switch t := v[key].(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// Has reports whether key carries a non-empty value. A false bool counts as present.
func (v Values) Has(key string) bool {
	switch t := v[key].(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []string:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}

// Clone returns a deep copy; list values are copied.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		switch t := val.(type) {
		case []string:
			out[k] = append([]string(nil), t...)
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = val
		}
	}
	return out
}

// Merge returns a copy of v overlaid with other.
func (v Values) Merge(other Values) Values {
	out := v.Clone()
	if out == nil {
		out = Values{}
	}
	for k, val := range other.Clone() {
		out[k] = val
	}
	return out
}

func setString(v Values, key, s string) {
	if s != "" {
		v[key] = s
	}
}

func setStringPtr(v Values, key string, p *string) {
	if p != nil && *p != "" {
		v[key] = *p
	}
}

func setList(v Values, key string, l []string) {
	if len(l) > 0 {
		v[key] = append([]string(nil), l...)
	}
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
