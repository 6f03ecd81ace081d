package wire

import (
	"fmt"
	"sort"
	"strings"
)

// EncodeTOON renders v as TOON (§6.4). The grammar as stated covers flat
// scalar-valued objects and homogeneous object arrays inline; documents
// with deeper nesting (every HUD section, our actual payload) extend it
// the natural way real TOON implementations do: once an object has any
// non-scalar field, it switches from the single-line `name{f}: v` form to
// an indented block of `field: value` lines, recursing the same rule at
// each level. This keeps the header-lists-fields property (schema-first)
// while staying unambiguous to parse.
func EncodeTOON(v any, rootName string) (string, error) {
	tree, err := toTree(v)
	if err != nil {
		return "", err
	}
	m, ok := tree.(map[string]any)
	if !ok {
		return "", fmt.Errorf("wire: TOON root must encode to an object, got %T", tree)
	}
	lines := encodeObjectLines(rootName, m, 0)
	return strings.Join(lines, "\n"), nil
}

func indentStr(n int) string {
	return strings.Repeat("  ", n)
}

func isScalar(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

func isScalarArray(arr []any) bool {
	for _, el := range arr {
		if !isScalar(el) {
			return false
		}
	}
	return true
}

// isHomogeneousObjectArray reports whether arr can use the compact
// `name[N]{fields}:` row form: every element must be an object, share the
// same field set, AND be flat (only scalar/scalar-array field values) so
// that a single inline row per element loses nothing. Arrays of objects
// that themselves carry nested structure (e.g. a room's messages, where
// each message is flat but the room object also carries other nested
// fields) fall back to the heterogeneous per-item block form, which
// recurses properly instead of silently flattening nested content.
func isHomogeneousObjectArray(arr []any) bool {
	if len(arr) == 0 {
		return false
	}
	first, ok := arr[0].(map[string]any)
	if !ok || !isFlatObject(first) {
		return false
	}
	wantKeys := keySet(first)
	for _, el := range arr[1:] {
		m, ok := el.(map[string]any)
		if !ok || !isFlatObject(m) || !sameKeySet(keySet(m), wantKeys) {
			return false
		}
	}
	return true
}

func keySet(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameKeySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isFlatObject(m map[string]any) bool {
	for _, v := range m {
		switch t := v.(type) {
		case map[string]any:
			return false
		case []any:
			if !isScalarArray(t) {
				return false
			}
		}
	}
	return true
}

func encodeInlineValue(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, len(t))
		for i, el := range t {
			parts[i] = encodeScalar(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return encodeScalar(t)
	}
}

func encodeObjectLines(name string, m map[string]any, indent int) []string {
	keys := orderedKeys(m)
	header := indentStr(indent) + name + "{" + strings.Join(keys, ",") + "}:"

	if isFlatObject(m) {
		values := make([]string, len(keys))
		for i, k := range keys {
			values[i] = encodeInlineValue(m[k])
		}
		return []string{header + " " + strings.Join(values, ", ")}
	}

	lines := []string{header}
	for _, k := range keys {
		v := m[k]
		switch t := v.(type) {
		case map[string]any:
			lines = append(lines, encodeObjectLines(k, t, indent+1)...)
		case []any:
			lines = append(lines, encodeArrayLines(k, t, indent+1)...)
		default:
			lines = append(lines, indentStr(indent+1)+k+": "+encodeScalar(t))
		}
	}
	return lines
}

func encodeArrayLines(name string, arr []any, indent int) []string {
	if len(arr) == 0 {
		return []string{indentStr(indent) + name + "[0]{}:"}
	}
	if isScalarArray(arr) {
		return []string{indentStr(indent) + name + ": " + encodeInlineValue(arr)}
	}
	if isHomogeneousObjectArray(arr) {
		first := arr[0].(map[string]any)
		fields := orderedKeys(first)
		lines := []string{fmt.Sprintf("%s%s[%d]{%s}:", indentStr(indent), name, len(arr), strings.Join(fields, ","))}
		for _, el := range arr {
			obj := el.(map[string]any)
			values := make([]string, len(fields))
			for i, f := range fields {
				values[i] = encodeInlineValue(obj[f])
			}
			lines = append(lines, indentStr(indent+1)+strings.Join(values, ", "))
		}
		return lines
	}
	// heterogeneous fallback: one sub-block per element
	lines := []string{fmt.Sprintf("%s%s[%d]:", indentStr(indent), name, len(arr))}
	for i, el := range arr {
		switch t := el.(type) {
		case map[string]any:
			lines = append(lines, encodeObjectLines(fmt.Sprintf("item%d", i), t, indent+1)...)
		default:
			lines = append(lines, indentStr(indent+1)+encodeScalar(t))
		}
	}
	return lines
}
