package wire

import (
	"strconv"
	"strings"
)

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	switch s {
	case "true", "false", "null":
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	return strings.ContainsAny(s, ",{}:\n") || strings.ContainsAny(s, "[]")
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func unquoteString(s string) (string, error) {
	var b strings.Builder
	i := 1 // skip leading quote
	for i < len(s)-1 {
		c := s[i]
		if c == '\\' && i+1 < len(s)-1 {
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), nil
}

// encodeScalar renders a JSON-decoded scalar (string, float64, bool, nil)
// per the TOON scalar grammar.
func encodeScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		if needsQuoting(t) {
			return quoteString(t)
		}
		return t
	default:
		return ""
	}
}

// decodeScalar parses one TOON scalar token back into its JSON-equivalent
// Go value (string, float64, bool, nil).
func decodeScalar(tok string) any {
	tok = strings.TrimSpace(tok)
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' {
		s, _ := unquoteString(tok)
		return s
	}
	switch tok {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	return tok
}
