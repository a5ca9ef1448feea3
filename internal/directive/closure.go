package directive

import "sort"

// computeClosureVars implements spec.md §4.2's closure-capture rule: an
// identifier referenced in bodyToks counts as a capture when it is not
// declared anywhere in the function's own scope subtree (localDecls,
// already flattened across nested functions by the collector), is not
// one of the fixed host globals, and does resolve in some enclosing
// scope. Each name appears once, sorted lexicographically for determinism.
func computeClosureVars(bodyToks []Token, localDecls map[string]bool, enclosing *scope) []string {
	seen := map[string]bool{}
	var out []string

	for i, t := range bodyToks {
		if t.Kind != TokIdent {
			continue
		}
		name := t.Text

		if i > 0 && bodyToks[i-1].Text == "." {
			continue // property access, e.g. foo.bar — bar is not a reference
		}
		if i+1 < len(bodyToks) && bodyToks[i+1].Text == ":" && i > 0 &&
			(bodyToks[i-1].Text == "{" || bodyToks[i-1].Text == ",") {
			continue // object literal key
		}
		if isReservedValueWord(name) {
			continue
		}

		if localDecls[name] {
			continue
		}
		if isGlobal(name) {
			continue
		}
		if enclosing == nil || !enclosing.resolves(name) {
			continue
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func isReservedValueWord(name string) bool {
	switch name {
	case "this", "super", "true", "false", "null", "undefined", "arguments":
		return true
	}
	return isKeyword(name)
}
