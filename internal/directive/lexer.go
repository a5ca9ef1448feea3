package directive

import "strings"

// tokenize turns src into a flat token stream. Comments are dropped.
// Template literals are descended into: raw text is skipped, and every
// ${...} interpolation is recursively tokenized and its tokens spliced
// into the stream, so identifier references inside template expressions
// are visible to the closure scanner.
func tokenize(src string) []Token {
	var toks []Token
	i, n := 0, len(src)
	var prevSignificant string

	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			j := strings.Index(src[i+2:], "*/")
			if j < 0 {
				i = n
			} else {
				i = i + 2 + j + 2
			}

		case c == '"' || c == '\'':
			start := i
			i = skipQuoted(src, i, c)
			toks = append(toks, Token{Kind: TokString, Text: src[start:i], Pos: start, End: i})
			prevSignificant = "str"

		case c == '`':
			start := i
			var end int
			end, inner := scanTemplate(src, i)
			toks = append(toks, Token{Kind: TokString, Text: src[start:end], Pos: start, End: end})
			toks = append(toks, inner...)
			i = end
			prevSignificant = "str"

		case isIdentStart(c):
			start := i
			i++
			for i < n && isIdentPart(src[i]) {
				i++
			}
			text := src[start:i]
			kind := TokIdent
			if isKeyword(text) {
				kind = TokKeyword
			}
			toks = append(toks, Token{Kind: kind, Text: text, Pos: start, End: i})
			prevSignificant = text

		case c >= '0' && c <= '9':
			start := i
			i++
			for i < n && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, Token{Kind: TokNumber, Text: src[start:i], Pos: start, End: i})
			prevSignificant = "num"

		case c == '/':
			if regexAllowed(prevSignificant) {
				start := i
				end := scanRegex(src, i)
				if end > start {
					toks = append(toks, Token{Kind: TokRegex, Text: src[start:end], Pos: start, End: end})
					i = end
					prevSignificant = "regex"
					continue
				}
			}
			start := i
			i = scanOperator(src, i)
			toks = append(toks, Token{Kind: TokPunct, Text: src[start:i], Pos: start, End: i})
			prevSignificant = src[start:i]

		default:
			start := i
			i = scanOperator(src, i)
			if i == start {
				i++
			}
			toks = append(toks, Token{Kind: TokPunct, Text: src[start:i], Pos: start, End: i})
			prevSignificant = src[start:i]
		}
	}

	toks = append(toks, Token{Kind: TokEOF, Pos: n, End: n})
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// regexAllowed applies the common heuristic: a '/' starts a regex unless
// the previous significant token was something a value could follow
// (identifier, literal, closing bracket).
func regexAllowed(prev string) bool {
	switch prev {
	case "", "str", "num", "regex":
		return prev == ""
	case ")", "]", "}":
		return false
	}
	if prev == "this" || prev == "super" || prev == "true" || prev == "false" || prev == "null" {
		return false
	}
	if len(prev) > 0 && (isIdentStart(prev[0])) && !isKeyword(prev) {
		return false // identifier value precedes -> division
	}
	return true
}

func scanRegex(src string, i int) int {
	n := len(src)
	start := i
	i++ // skip '/'
	inClass := false
	for i < n {
		c := src[i]
		if c == '\\' {
			i += 2
			continue
		}
		if c == '[' {
			inClass = true
		} else if c == ']' {
			inClass = false
		} else if c == '/' && !inClass {
			i++
			for i < n && isIdentPart(src[i]) {
				i++
			}
			return i
		} else if c == '\n' {
			return start // not a regex after all
		}
		i++
	}
	return start
}

var multiCharOps = []string{
	"...", "=>", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"==", "!=", "<=", ">=", "&&", "||", "??", "?.", "+=", "-=", "*=", "/=",
	"%=", "&=", "|=", "^=", "++", "--", "**", "<<", ">>",
}

func scanOperator(src string, i int) int {
	rest := src[i:]
	for _, op := range multiCharOps {
		if strings.HasPrefix(rest, op) {
			return i + len(op)
		}
	}
	return i + 1
}

func skipQuoted(src string, i int, quote byte) int {
	n := len(src)
	i++
	for i < n {
		if src[i] == '\\' {
			i += 2
			continue
		}
		if src[i] == quote {
			return i + 1
		}
		i++
	}
	return n
}

// scanTemplate consumes a template literal starting at the backtick at
// src[i], descending into ${...} interpolations. It returns the index
// just past the closing backtick and the tokens found inside every
// interpolation (flattened, in source order).
func scanTemplate(src string, i int) (int, []Token) {
	n := len(src)
	var inner []Token
	i++ // opening backtick
	for i < n {
		c := src[i]
		switch {
		case c == '\\':
			i += 2
		case c == '`':
			return i + 1, inner
		case c == '$' && i+1 < n && src[i+1] == '{':
			exprStart := i + 2
			exprEnd := matchTemplateExpr(src, exprStart)
			for _, t := range tokenize(src[exprStart:exprEnd]) {
				if t.Kind == TokEOF {
					continue
				}
				t.Pos += exprStart
				t.End += exprStart
				inner = append(inner, t)
			}
			i = exprEnd + 1
		default:
			i++
		}
	}
	return i, inner
}

// matchTemplateExpr scans forward from the first character after "${"
// and returns the index of the matching '}', tracking nested brackets,
// strings and nested template literals.
func matchTemplateExpr(src string, i int) int {
	n := len(src)
	depth := 1
	for i < n {
		c := src[i]
		switch {
		case c == '{' || c == '(' || c == '[':
			depth++
			i++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
			i++
		case c == ']' || c == ')':
			i++
		case c == '"' || c == '\'':
			i = skipQuoted(src, i, c)
		case c == '`':
			end, _ := scanTemplate(src, i)
			i = end
		default:
			i++
		}
	}
	return n
}
