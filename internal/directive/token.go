// Package directive implements the parser, scope tracker and closure
// collector for the "use sandbox" directive: it walks a JS/TS source file,
// finds every async function whose body opens with the directive literal,
// and records enough about it (name, scope path, parameters, captured
// closure variables, body source) for internal/codegen to turn it into a
// stub and a generated sandbox module.
package directive

// TokenKind classifies a lexical token produced by the tokenizer.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokKeyword
	TokString
	TokNumber
	TokPunct
	TokRegex
)

// Token is one lexical unit. Pos/End are byte offsets into the original
// source, used to slice out verbatim spans (parameter lists, bodies).
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
	End  int
}

var keywords = map[string]bool{
	"async": true, "function": true, "const": true, "let": true, "var": true,
	"class": true, "return": true, "if": true, "else": true, "for": true,
	"while": true, "do": true, "switch": true, "case": true, "default": true,
	"break": true, "continue": true, "new": true, "typeof": true,
	"instanceof": true, "in": true, "of": true, "try": true, "catch": true,
	"finally": true, "throw": true, "yield": true, "await": true,
	"export": true, "import": true, "this": true, "super": true,
	"extends": true, "static": true, "delete": true, "void": true,
	"null": true, "true": true, "false": true,
}

func isKeyword(s string) bool { return keywords[s] }
