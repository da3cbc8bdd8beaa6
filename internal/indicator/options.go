package indicator

import (
	"fmt"
	"strconv"
)

// Options carries named indicator or strategy parameters. Values usually
// come from YAML or Go literals, so numeric getters accept any numeric type.
type Options map[string]any

// Int returns the named option as an int, or def when unset.
func (o Options) Int(key string, def int) int {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case uint:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Float returns the named option as a float64, or def when unset.
func (o Options) Float(key string, def float64) float64 {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// String returns the named option as a string, or def when unset.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns the named option as a bool, or def when unset. Strings are
// parsed with strconv.ParseBool; numbers are true when non-zero.
func (o Options) Bool(key string, def bool) bool {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if p, err := strconv.ParseBool(b); err == nil {
			return p
		}
		return def
	}
	return o.Float(key, 0) != 0
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Merge returns a copy of defaults overlaid with o.
func (o Options) Merge(defaults Options) Options {
	out := make(Options, len(defaults)+len(o))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy.
func (o Options) Clone() Options {
	return o.Merge(nil)
}
