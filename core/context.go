package core

import (
	"fmt"
	"reflect"
	"strings"
)

// Context is the accumulated set of structured facts known about a session's
// travel request. Values are JSON compatible (strings, numbers, booleans,
// []any and map[string]any). Some fields nest one level, e.g.
// "preferences.budget".
type Context map[string]any

// Merge combines overlay into base using right-biased merge-if-present.
//
// For every key in overlay:
//   - if both values are mappings, they are merged recursively
//   - if the overlay value is blank (see IsBlank), base keeps its value
//   - otherwise the overlay value wins
//
// Neither input is mutated; the result never aliases nested maps or slices of
// its inputs. Blank entries inside an overlay mapping that replaces a
// non-mapping base value are dropped.
func Merge(base, overlay Context) Context {
	out := base.Clone()
	if out == nil {
		out = Context{}
	}

	for k, v := range overlay {
		if om, ok := asMap(v); ok {
			if bm, ok := asMap(out[k]); ok {
				out[k] = map[string]any(Merge(bm, om))
				continue
			}
			if IsBlank(om) {
				continue
			}
			out[k] = map[string]any(Merge(nil, om))
			continue
		}

		if IsBlank(v) {
			continue
		}

		out[k] = cloneValue(v)
	}

	return out
}

// IsBlank reports whether v carries no information: nil, the empty string,
// an empty slice or array, or a mapping whose values are all blank. Numbers
// and booleans are never blank.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}

	switch t := v.(type) {
	case string:
		return t == ""
	case Context:
		return allBlank(t)
	case map[string]any:
		return allBlank(t)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if !IsBlank(iter.Value().Interface()) {
				return false
			}
		}
		return true
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}

	return false
}

func allBlank(m map[string]any) bool {
	for _, v := range m {
		if !IsBlank(v) {
			return false
		}
	}
	return true
}

// Has reports whether field is present with a non-blank value. Field may be
// dot-qualified one level deep ("parent.child"); a literal dotted key is
// accepted as well.
func (c Context) Has(field string) bool {
	if v, ok := c[field]; ok && !IsBlank(v) {
		return true
	}

	parent, child, ok := strings.Cut(field, ".")
	if !ok {
		return false
	}

	m, ok := asMap(c[parent])
	if !ok {
		return false
	}

	return !IsBlank(m[child])
}

// Get returns the value addressed by field, which may be dot-qualified.
func (c Context) Get(field string) (any, bool) {
	if v, ok := c[field]; ok {
		return v, true
	}

	parent, child, ok := strings.Cut(field, ".")
	if !ok {
		return nil, false
	}

	m, ok := asMap(c[parent])
	if !ok {
		return nil, false
	}

	v, ok := m[child]
	return v, ok
}

// Set stores value under field. A dot-qualified field writes into a nested
// mapping, creating it when absent. Nil values are ignored.
func (c Context) Set(field string, value any) {
	if value == nil {
		return
	}

	parent, child, ok := strings.Cut(field, ".")
	if !ok {
		c[field] = value
		return
	}

	m, ok := asMap(c[parent])
	if !ok {
		m = map[string]any{}
	}
	m[child] = value
	c[parent] = m
}

// String returns the value of field formatted as text, or "" when absent.
func (c Context) String(field string) string {
	v, ok := c.Get(field)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Map returns the nested mapping stored under key, or an empty Context.
func (c Context) Map(key string) Context {
	if m, ok := asMap(c[key]); ok {
		return Context(m)
	}
	return Context{}
}

// Clone returns a deep copy of the context (maps and slices).
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Context:
		return map[string]any(t.Clone())
	case map[string]any:
		return map[string]any(Context(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case Context:
		return t, true
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}
