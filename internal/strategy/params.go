package strategy

import (
	"fmt"
	"math"
)

// Kind enumerates the accepted parameter value kinds.
type Kind string

const (
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindBool  Kind = "bool"
	KindEnum  Kind = "enum"
)

// ParameterDef declares one validated configuration knob of a strategy.
type ParameterDef struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	Default     any      `json:"default"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Description string   `json:"description"`
}

// Params is a validated strategy configuration. Values are normalized to
// int, float64, bool or string according to the declared kind.
type Params map[string]any

// ConfigError reports a configuration problem detected before any candle
// is processed: wrong kind, out-of-range value, unknown parameter or
// unknown strategy name.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration for %q: %s", e.Field, e.Reason)
}

func configErrf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ValidateParams checks raw values against defs, fills in defaults for
// absent parameters and rejects anything out of bounds or of the wrong
// kind. Unknown keys are rejected so typos never silently fall back to a
// default.
func ValidateParams(defs []ParameterDef, raw map[string]any) (Params, error) {
	byName := make(map[string]ParameterDef, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}
	for name := range raw {
		if _, ok := byName[name]; !ok {
			return nil, configErrf(name, "unknown parameter")
		}
	}

	out := make(Params, len(defs))
	for _, d := range defs {
		v, present := raw[d.Name]
		if !present {
			v = d.Default
		}
		norm, err := normalize(d, v)
		if err != nil {
			return nil, err
		}
		out[d.Name] = norm
	}
	return out, nil
}

func normalize(d ParameterDef, v any) (any, error) {
	switch d.Kind {
	case KindInt:
		n, ok := asFloat(v)
		if !ok || n != math.Trunc(n) {
			return nil, configErrf(d.Name, "expected an integer, got %v", v)
		}
		if err := checkBounds(d, n); err != nil {
			return nil, err
		}
		return int(n), nil
	case KindFloat:
		n, ok := asFloat(v)
		if !ok {
			return nil, configErrf(d.Name, "expected a number, got %v", v)
		}
		if err := checkBounds(d, n); err != nil {
			return nil, err
		}
		return n, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, configErrf(d.Name, "expected a boolean, got %v", v)
		}
		return b, nil
	case KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, configErrf(d.Name, "expected a string, got %v", v)
		}
		for _, allowed := range d.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, configErrf(d.Name, "value %q not in %v", s, d.Enum)
	}
	return nil, configErrf(d.Name, "unknown parameter kind %q", d.Kind)
}

func checkBounds(d ParameterDef, n float64) error {
	if d.Min != nil && n < *d.Min {
		return configErrf(d.Name, "value %v below minimum %v", n, *d.Min)
	}
	if d.Max != nil && n > *d.Max {
		return configErrf(d.Name, "value %v above maximum %v", n, *d.Max)
	}
	return nil
}

// asFloat widens the numeric types JSON decoding and Go literals produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Typed accessors. Params produced by ValidateParams always hold the
// normalized type, so the zero value only shows up for absent names.

func (p Params) Int(name string) int {
	n, _ := p[name].(int)
	return n
}

func (p Params) Float(name string) float64 {
	n, _ := p[name].(float64)
	return n
}

func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

func (p Params) Str(name string) string {
	s, _ := p[name].(string)
	return s
}

func fptr(v float64) *float64 { return &v }
