package tool

import "encoding/json"

// Args holds a call's validated arguments. Getters assume Validate has
// already enforced types; defaults cover optional parameters.
type Args map[string]any

// String returns a required string argument.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// StringOr returns an optional string argument or def.
func (a Args) StringOr(name, def string) string {
	if v, ok := a[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// BoolOr returns an optional bool argument or def.
func (a Args) BoolOr(name string, def bool) bool {
	if v, ok := a[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// IntOr returns an optional integer argument or def. JSON decoding yields
// float64 for numbers; both forms are accepted.
func (a Args) IntOr(name string, def int) int {
	v, ok := a[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}
