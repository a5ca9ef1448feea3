package directive

import "strings"

// Param describes one entry of a parameter list, destructured or not.
type Param struct {
	Raw string // verbatim source of this parameter, default value included

	IsRest bool

	// BoundNames are every identifier this parameter binds, used to seed
	// the function's own scope so they never count as closure captures.
	BoundNames []string

	// ForwardName is the identifier used to reference this parameter's
	// whole value when building the stub's forwarded-args array. For a
	// plain identifier it's just that name; for a destructured
	// parameter, codegen introduces a synthetic positional name (see
	// synthForwardName) because the original pattern has no single
	// bound identifier that holds the whole argument.
	ForwardName string

	// DefaultSrc is the verbatim default-value expression, or "" if this
	// parameter has none. codegen attaches it to ForwardName in the
	// stub's own signature so the default still applies before the
	// value is forwarded to the sandbox.
	DefaultSrc string
}

// ParseParams is the exported entry point other packages use to inspect
// a parameter list's bindings.
func ParseParams(src string) []Param { return parseParams(src) }

// splitTopLevelParams splits a parameter list's source (without the
// enclosing parentheses) into individual parameter sources, respecting
// nested (), [], {} and string/template literals.
func splitTopLevelParams(src string) []string {
	toks := tokenize(src)
	var parts []string
	depth := 0
	start := 0
	last := 0
	for _, t := range toks {
		if t.Kind == TokEOF {
			break
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ",":
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(src[start:t.Pos]))
				start = t.End
			}
		}
		last = t.End
	}
	if strings.TrimSpace(src[start:last]) != "" || len(parts) > 0 {
		tail := strings.TrimSpace(src[start:])
		if tail != "" {
			parts = append(parts, tail)
		}
	}
	return parts
}

// parseParams turns a parameter list's raw entries into Params,
// extracting bound names from plain, defaulted, rest and (shallowly)
// destructured forms.
func parseParams(src string) []Param {
	raws := splitTopLevelParams(src)
	params := make([]Param, 0, len(raws))
	for idx, raw := range raws {
		p := Param{Raw: raw}
		body := raw
		if strings.HasPrefix(body, "...") {
			p.IsRest = true
			body = strings.TrimSpace(body[3:])
		}
		// strip a default value: split at the first top-level '='.
		pattern := body
		if eq := findTopLevelEquals(body); eq >= 0 {
			pattern = strings.TrimSpace(body[:eq])
			p.DefaultSrc = strings.TrimSpace(body[eq+1:])
		}
		switch {
		case strings.HasPrefix(pattern, "{") || strings.HasPrefix(pattern, "["):
			p.BoundNames = destructuredNames(pattern)
			p.ForwardName = synthForwardName(idx)
		default:
			name := strings.TrimSpace(pattern)
			p.BoundNames = []string{name}
			p.ForwardName = name
		}
		params = append(params, p)
	}
	return params
}

func synthForwardName(idx int) string {
	return "__arg" + itoa(idx)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// findTopLevelEquals returns the byte offset of the first '=' that sits
// outside any nested bracket and isn't part of ==, ===, =>, <=, >=, !=.
func findTopLevelEquals(src string) int {
	toks := tokenize(src)
	depth := 0
	for _, t := range toks {
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 {
				return t.Pos
			}
		}
	}
	return -1
}

// destructuredNames extracts the bound identifiers from an object or
// array destructuring pattern. It intentionally only goes one level of
// renaming deep (`{ a: renamed }` binds "renamed") and does not follow
// further nested patterns beyond collecting every identifier that
// appears in a binding position — sufficient to seed scope declarations
// even though it over-approximates for deeply nested patterns.
func destructuredNames(pattern string) []string {
	toks := tokenize(pattern)
	var names []string
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != TokIdent {
			continue
		}
		// Skip a property key immediately followed by ':' (renamed
		// destructuring `{ key: bound }`) — the key itself binds nothing.
		if i+1 < len(toks) && toks[i+1].Text == ":" {
			continue
		}
		if t.Text == "..." {
			continue
		}
		names = append(names, t.Text)
	}
	return names
}
