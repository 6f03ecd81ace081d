package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTOON parses TOON text (§6.4, with the nesting extension documented
// in toon.go) into the generic any-tree used across this package. Returns
// the parsed value of the top-level object only (its own name is
// discarded, matching how the JSON decoders return a bare value).
func ParseTOON(text string) (any, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return map[string]any{}, nil
	}
	_, value, _, err := parseBlock(lines, 0, 0)
	return value, err
}

type rawLine struct {
	indent  int
	content string
}

func splitLines(text string) []rawLine {
	var out []rawLine
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimRight(l, " \t")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		indent := 0
		for indent*2 < len(trimmed) && trimmed[indent*2] == ' ' && trimmed[indent*2+1] == ' ' {
			indent++
		}
		out = append(out, rawLine{indent: indent, content: strings.TrimLeft(trimmed, " ")})
	}
	return out
}

// parsedHeader is the decomposition of one "name{fields}:" / "name[N]{fields}:"
// / "name[N]:" / "name: value" header line.
type parsedHeader struct {
	name    string
	isArray bool
	count   int
	fields  []string
	rest    string // text following the header colon, on the same line
}

func parseHeader(line string) (parsedHeader, error) {
	i := 0
	for i < len(line) && line[i] != '{' && line[i] != '[' && line[i] != ':' {
		i++
	}
	name := line[:i]
	h := parsedHeader{name: name}

	if i < len(line) && line[i] == '[' {
		h.isArray = true
		j := strings.IndexByte(line[i:], ']')
		if j < 0 {
			return h, fmt.Errorf("wire: TOON malformed array header %q", line)
		}
		countStr := line[i+1 : i+j]
		n, err := strconv.Atoi(countStr)
		if err != nil {
			return h, fmt.Errorf("wire: TOON bad array count in %q: %w", line, err)
		}
		h.count = n
		i += j + 1
	}

	if i < len(line) && line[i] == '{' {
		j := strings.IndexByte(line[i:], '}')
		if j < 0 {
			return h, fmt.Errorf("wire: TOON malformed field list %q", line)
		}
		fieldsStr := line[i+1 : i+j]
		if fieldsStr != "" {
			h.fields = trimEach(splitTopLevel(fieldsStr, ','))
		}
		i += j + 1
	}

	if i >= len(line) || line[i] != ':' {
		return h, fmt.Errorf("wire: TOON header missing ':' in %q", line)
	}
	h.rest = trimSpace(line[i+1:])
	return h, nil
}

// parseBlock parses the block starting at lines[idx], which must be
// indented exactly at indent, and returns its name, decoded value, and
// the index of the next unconsumed line.
func parseBlock(lines []rawLine, idx int, indent int) (string, any, int, error) {
	if idx >= len(lines) || lines[idx].indent != indent {
		return "", nil, idx, fmt.Errorf("wire: TOON expected line at indent %d, index %d", indent, idx)
	}
	header, err := parseHeader(lines[idx].content)
	if err != nil {
		return "", nil, idx, err
	}
	next := idx + 1

	switch {
	case header.isArray && len(header.fields) > 0:
		// name[N]{f1,f2}: homogeneous object rows
		rows := make([]any, 0, header.count)
		for r := 0; r < header.count; r++ {
			if next >= len(lines) || lines[next].indent != indent+1 {
				return "", nil, next, fmt.Errorf("wire: TOON expected %d rows for %q", header.count, header.name)
			}
			values := trimEach(splitTopLevel(lines[next].content, ','))
			obj := make(map[string]any, len(header.fields))
			for i, f := range header.fields {
				if i < len(values) {
					obj[f] = decodeInlineValue(values[i])
				}
			}
			rows = append(rows, obj)
			next++
		}
		return header.name, rows, next, nil

	case header.isArray && header.rest == "" && len(header.fields) == 0:
		// name[N]: heterogeneous array, one child block/scalar per element
		items := make([]any, 0, header.count)
		for r := 0; r < header.count; r++ {
			if next >= len(lines) || lines[next].indent != indent+1 {
				return "", nil, next, fmt.Errorf("wire: TOON expected %d items for %q", header.count, header.name)
			}
			if strings.ContainsAny(lines[next].content, "{[") && strings.Contains(lines[next].content, ":") {
				_, v, n, err := parseBlock(lines, next, indent+1)
				if err != nil {
					return "", nil, next, err
				}
				items = append(items, v)
				next = n
			} else {
				items = append(items, decodeScalar(lines[next].content))
				next++
			}
		}
		return header.name, items, next, nil

	case len(header.fields) > 0 && header.rest != "":
		// name{f1,f2}: v1, v2 (flat inline object)
		values := trimEach(splitTopLevel(header.rest, ','))
		obj := make(map[string]any, len(header.fields))
		for i, f := range header.fields {
			if i < len(values) {
				obj[f] = decodeInlineValue(values[i])
			}
		}
		return header.name, obj, next, nil

	case len(header.fields) > 0 && header.rest == "":
		// name{f1,f2}: block form, one "field: value" / nested block per field
		obj := make(map[string]any, len(header.fields))
		for _, f := range header.fields {
			if next >= len(lines) || lines[next].indent != indent+1 {
				return "", nil, next, fmt.Errorf("wire: TOON expected field %q of %q", f, header.name)
			}
			childHeader, err := parseHeader(lines[next].content)
			if err != nil {
				return "", nil, next, err
			}
			if childHeader.name != f {
				return "", nil, next, fmt.Errorf("wire: TOON expected field %q, got %q", f, childHeader.name)
			}
			if len(childHeader.fields) > 0 || childHeader.isArray {
				_, v, n, err := parseBlock(lines, next, indent+1)
				if err != nil {
					return "", nil, next, err
				}
				obj[f] = v
				next = n
			} else {
				obj[f] = decodeInlineValue(childHeader.rest)
				next++
			}
		}
		return header.name, obj, next, nil

	default:
		// name: value (plain scalar or scalar-array field)
		return header.name, decodeInlineValue(header.rest), next, nil
	}
}

func decodeInlineValue(s string) any {
	s = trimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		inner := s[1 : len(s)-1]
		if trimSpace(inner) == "" {
			return []any{}
		}
		parts := trimEach(splitTopLevel(inner, ','))
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = decodeScalar(p)
		}
		return out
	}
	return decodeScalar(s)
}
