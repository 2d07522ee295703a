package alignment

import (
	"encoding/json"
	"fmt"
	"math"

	apperrors "chaosalign/internal/errors"
)

// Attributes is the loosely typed description of an entity: numeric
// metrics, categorical ratings and flags keyed by attribute name.
type Attributes map[string]any

// Context attribute names that are not scored directly.
const (
	AttrName     = "name"
	AttrIndustry = "industry"
	AttrSources  = "sources"
)

// Number returns a numeric attribute. ok is false when the key is absent or
// nil; err is set when the value is present but not a finite number.
func (a Attributes) Number(key string) (v float64, ok bool, err error) {
	raw, present := a[key]
	if !present || raw == nil {
		return 0, false, nil
	}
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int8:
		v = float64(n)
	case int16:
		v = float64(n)
	case int32:
		v = float64(n)
	case int64:
		v = float64(n)
	case uint:
		v = float64(n)
	case uint8:
		v = float64(n)
	case uint16:
		v = float64(n)
	case uint32:
		v = float64(n)
	case uint64:
		v = float64(n)
	case json.Number:
		f, perr := n.Float64()
		if perr != nil {
			return 0, false, fmt.Errorf("%s: %w", key, apperrors.ErrMalformedAttribute)
		}
		v = f
	default:
		return 0, false, fmt.Errorf("%s: expected number, got %T: %w", key, raw, apperrors.ErrMalformedAttribute)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%s: non-finite value: %w", key, apperrors.ErrMalformedAttribute)
	}
	return v, true, nil
}

// Text returns a string attribute.
func (a Attributes) Text(key string) (s string, ok bool, err error) {
	raw, present := a[key]
	if !present || raw == nil {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", false, fmt.Errorf("%s: expected string, got %T: %w", key, raw, apperrors.ErrMalformedAttribute)
	}
	return s, true, nil
}

// Flag returns a boolean attribute.
func (a Attributes) Flag(key string) (b bool, ok bool, err error) {
	raw, present := a[key]
	if !present || raw == nil {
		return false, false, nil
	}
	b, isBool := raw.(bool)
	if !isBool {
		return false, false, fmt.Errorf("%s: expected bool, got %T: %w", key, raw, apperrors.ErrMalformedAttribute)
	}
	return b, true, nil
}

// Strings returns a list-of-strings attribute. Values that are not strings are skipped.
func (a Attributes) Strings(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// Merge returns a copy of a overlaid with other.
func (a Attributes) Merge(other Attributes) Attributes {
	out := make(Attributes, len(a)+len(other))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	return a.Merge(nil)
}
