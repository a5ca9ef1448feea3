package directive

import (
	"fmt"
	"strings"
)

// ParseError reports a function that opens with the directive literal
// but that the collector cannot give a stable identity to.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// frame tracks one open function scope during the scan: its own lexical
// scope (for resolving identifiers declared here or in an ancestor), the
// scope path used to build fnID, a flattened set of every name declared
// anywhere in its subtree (used to exclude locals from closure capture),
// and the token slice that belongs to its own body with nested function
// bodies already excised.
type frame struct {
	sc        *scope
	scopePath []string
	flatten   map[string]bool
	ownToks   []Token
}

type collector struct {
	toks       []Token
	source     string
	sourceFile string
	frames     []*frame
	out        []FunctionRecord
	errs       []error
}

// Collect parses source (the contents of sourceFile) and returns one
// FunctionRecord per function whose body's first statement is the
// literal expression "use sandbox".
func Collect(source, sourceFile string) ([]FunctionRecord, error) {
	c := &collector{
		toks:       tokenize(source),
		source:     source,
		sourceFile: sourceFile,
	}
	root := &frame{sc: newScope(nil), flatten: map[string]bool{}}
	c.frames = []*frame{root}
	c.scanRegion(0, len(c.toks))
	if len(c.errs) > 0 {
		msgs := make([]string, len(c.errs))
		for i, e := range c.errs {
			msgs[i] = e.Error()
		}
		return c.out, fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return c.out, nil
}

func (c *collector) top() *frame { return c.frames[len(c.frames)-1] }

// declare registers name in the current scope and in every open frame's
// flatten set, so every ancestor function knows this name is local to
// its own subtree.
func (c *collector) declare(name string) {
	if name == "" {
		return
	}
	c.top().sc.declare(name)
	for _, f := range c.frames {
		f.flatten[name] = true
	}
}

func (c *collector) declareAll(names []string) {
	for _, n := range names {
		c.declare(n)
	}
}

// scanRegion walks toks[i:end), which belongs entirely to the function
// scope on top of c.frames, registering declarations and recursing into
// every nested function boundary it finds.
func (c *collector) scanRegion(i, end int) {
	toks := c.toks
	for i < end {
		t := toks[i]

		switch t.Text {
		case "import":
			j := i
			for j < end && toks[j].Text != ";" {
				j++
			}
			for k := i + 1; k < j; k++ {
				if toks[k].Kind == TokIdent && toks[k].Text != "from" {
					c.declare(toks[k].Text)
				}
			}
			i = j + 1
			continue

		case "class":
			if i+1 < end && toks[i+1].Kind == TokIdent {
				c.declare(toks[i+1].Text)
			}
			j := i + 1
			for j < end && toks[j].Text != "{" {
				j++
			}
			if j < end {
				close := matchBalanced(toks, j)
				if close > j {
					i = close + 1
					continue
				}
			}
			i++
			continue

		case "const", "let", "var":
			c.declareDeclarators(i+1, end)
			i++
			continue

		case "catch":
			if i+2 < end && toks[i+1].Text == "(" && toks[i+2].Kind == TokIdent {
				c.declare(toks[i+2].Text)
			}
			i++
			continue

		case "function":
			if c.handleFunctionKeyword(i, end, &i) {
				continue
			}

		case "(":
			if c.handleParenArrow(i, end, &i) {
				continue
			}
		}

		if t.Kind == TokIdent && i+2 < end && toks[i+1].Text == "=>" && toks[i+2].Text == "{" {
			if c.handleBareArrow(i, end, &i) {
				continue
			}
		}

		c.top().ownToks = append(c.top().ownToks, t)
		i++
	}
}

// declareDeclarators registers the bound names of one or more
// comma-separated const/let/var declarators starting at i, without
// consuming the range — the outer scan continues over the same tokens
// so initializers are still scanned for nested function boundaries.
func (c *collector) declareDeclarators(i, end int) {
	toks := c.toks
	depth := 0
	declStart := i
	for j := i; j < end; j++ {
		switch toks[j].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth < 0 {
				c.declareOneDeclarator(declStart, j)
				return
			}
		case ",":
			if depth == 0 {
				c.declareOneDeclarator(declStart, j)
				declStart = j + 1
			}
		case ";":
			if depth == 0 {
				c.declareOneDeclarator(declStart, j)
				return
			}
		}
	}
	c.declareOneDeclarator(declStart, end)
}

func (c *collector) declareOneDeclarator(start, end int) {
	if start >= end {
		return
	}
	toks := c.toks
	patEnd := end
	depth := 0
	for j := start; j < end; j++ {
		switch toks[j].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case "=":
			if depth == 0 {
				patEnd = j
				goto found
			}
		}
	}
found:
	if patEnd <= start {
		return
	}
	pat := strings.TrimSpace(c.source[toks[start].Pos:toks[patEnd-1].End])
	if strings.HasPrefix(pat, "{") || strings.HasPrefix(pat, "[") {
		c.declareAll(destructuredNames(pat))
	} else if toks[start].Kind == TokIdent {
		c.declare(toks[start].Text)
	}
}

// matchBalanced returns the index of the token that closes the bracket
// opened at toks[open].
func matchBalanced(toks []Token, open int) int {
	openText := toks[open].Text
	var closeText string
	switch openText {
	case "(":
		closeText = ")"
	case "[":
		closeText = "]"
	case "{":
		closeText = "}"
	default:
		return open
	}
	depth := 1
	for j := open + 1; j < len(toks); j++ {
		switch toks[j].Text {
		case openText:
			depth++
		case closeText:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(toks) - 1
}

func unquoteDirective(raw string) string {
	if len(raw) < 2 {
		return ""
	}
	return raw[1 : len(raw)-1]
}

// leftEdgeFlags inspects the tokens immediately before a function
// expression's leftmost token (leftEdge) to infer its bound name and
// export status.
type leftEdgeFlags struct {
	name       string
	isExported bool
	isDefault  bool
}

func (c *collector) inferLeftEdge(leftEdge int) leftEdgeFlags {
	toks := c.toks
	var f leftEdgeFlags
	if leftEdge-1 < 0 {
		return f
	}
	prev := toks[leftEdge-1]
	switch prev.Text {
	case "=":
		if leftEdge-2 >= 0 && toks[leftEdge-2].Kind == TokIdent {
			f.name = toks[leftEdge-2].Text
		}
	case ":":
		if leftEdge-2 >= 0 && (toks[leftEdge-2].Kind == TokIdent || toks[leftEdge-2].Kind == TokString) {
			f.name = strings.Trim(toks[leftEdge-2].Text, `"'`)
		}
	case "default":
		f.isDefault = true
		if leftEdge-2 >= 0 && toks[leftEdge-2].Text == "export" {
			f.isExported = true
		}
	case "export":
		f.isExported = true
	}
	return f
}

// handleFunctionKeyword processes `[async] function [NAME] ( params ) { body }`
// starting at the "function" token index i. On match it advances *pi past
// the function and returns true.
func (c *collector) handleFunctionKeyword(i, end int, pi *int) bool {
	toks := c.toks
	isAsync := i > 0 && toks[i-1].Text == "async"
	leftEdge := i
	if isAsync {
		leftEdge = i - 1
	}

	j := i + 1
	var explicitName string
	if j < end && toks[j].Kind == TokIdent {
		explicitName = toks[j].Text
		j++
	}
	if j >= end || toks[j].Text != "(" {
		return false
	}
	parenOpen := j
	parenClose := matchBalanced(toks, parenOpen)
	k := parenClose + 1
	if k >= end || toks[k].Text != "{" {
		return false
	}
	bodyOpen := k
	bodyClose := matchBalanced(toks, bodyOpen)

	flags := c.inferLeftEdge(leftEdge)
	name := explicitName
	if name == "" {
		name = flags.name
	}
	if explicitName != "" {
		c.declare(explicitName)
	}

	c.enterFunction(isAsync, name, flags.isExported, flags.isDefault,
		false, parenOpen, parenClose, bodyOpen, bodyClose)

	*pi = bodyClose + 1
	return true
}

// handleParenArrow processes `[async] ( params ) => { body }` starting at
// the "(" token index i.
func (c *collector) handleParenArrow(i, end int, pi *int) bool {
	toks := c.toks
	parenClose := matchBalanced(toks, i)
	if parenClose+2 >= end {
		return false
	}
	if toks[parenClose+1].Text != "=>" || toks[parenClose+2].Text != "{" {
		return false
	}
	isAsync := i > 0 && toks[i-1].Text == "async"
	leftEdge := i
	if isAsync {
		leftEdge = i - 1
	}
	bodyOpen := parenClose + 2
	bodyClose := matchBalanced(toks, bodyOpen)

	flags := c.inferLeftEdge(leftEdge)
	c.enterFunction(isAsync, flags.name, flags.isExported, flags.isDefault,
		true, i, parenClose, bodyOpen, bodyClose)

	*pi = bodyClose + 1
	return true
}

// handleBareArrow processes `[async] NAME => { body }`, the implicit
// single-parameter arrow form.
func (c *collector) handleBareArrow(i, end int, pi *int) bool {
	toks := c.toks
	isAsync := i > 0 && toks[i-1].Text == "async"
	leftEdge := i
	if isAsync {
		leftEdge = i - 1
	}
	bodyOpen := i + 2
	bodyClose := matchBalanced(toks, bodyOpen)

	flags := c.inferLeftEdge(leftEdge)
	c.enterFunctionWithBareParam(isAsync, flags.name, flags.isExported, flags.isDefault, true,
		-1, -1, bodyOpen, bodyClose, toks[i].Text)

	*pi = bodyClose + 1
	return true
}

// enterFunction pushes a new frame, declares its parameters, scans its
// body, records it if annotated, and pops the frame again.
func (c *collector) enterFunction(isAsync bool, name string, isExported, isDefault, isArrow bool,
	parenOpen, parenClose, bodyOpen, bodyClose int) {
	c.enterFunctionWithBareParam(isAsync, name, isExported, isDefault, isArrow, parenOpen, parenClose, bodyOpen, bodyClose, "")
}

// enterFunctionWithBareParam is enterFunction's implementation; bareParam
// is the single implicit-parens parameter name for a bare arrow
// (`x => {...}`), declared before the body is scanned, or "" otherwise.
func (c *collector) enterFunctionWithBareParam(isAsync bool, name string, isExported, isDefault, isArrow bool,
	parenOpen, parenClose, bodyOpen, bodyClose int, bareParam string) {

	toks := c.toks
	parent := c.top()
	child := &frame{
		sc:        newScope(parent.sc),
		scopePath: append(append([]string{}, parent.scopePath...), name),
		flatten:   map[string]bool{},
	}
	c.frames = append(c.frames, child)

	if bareParam != "" {
		c.declare(bareParam)
	}

	var paramListSrc string
	if parenOpen >= 0 && parenClose >= 0 && parenClose > parenOpen {
		paramListSrc = c.source[toks[parenOpen].End:toks[parenClose].Pos]
		for _, p := range parseParams(paramListSrc) {
			c.declareAll(p.BoundNames)
		}
	} else if bareParam != "" {
		paramListSrc = bareParam
	}

	c.scanRegion(bodyOpen+1, bodyClose)

	if isAsync {
		if rec, ok := c.detectAnnotated(child, parent.sc, name, isExported, isDefault, isArrow,
			parent.scopePath, paramListSrc, parenOpen, parenClose, bodyOpen, bodyClose); ok {
			c.out = append(c.out, rec)
		}
	}

	c.frames = c.frames[:len(c.frames)-1]
}

// detectAnnotated checks whether child's body opens with the directive
// literal and, if so, builds its FunctionRecord.
func (c *collector) detectAnnotated(child *frame, enclosing *scope, name string, isExported, isDefault, isArrow bool,
	parentScopePath []string, paramListSrc string, parenOpen, parenClose, bodyOpen, bodyClose int) (FunctionRecord, bool) {

	toks := c.toks
	firstIdx := bodyOpen + 1
	if firstIdx >= bodyClose || toks[firstIdx].Kind != TokString {
		return FunctionRecord{}, false
	}
	if unquoteDirective(toks[firstIdx].Text) != "use sandbox" {
		return FunctionRecord{}, false
	}

	if name == "" {
		reason := "annotated function has no derivable name"
		if isDefault {
			reason = "default-exported annotated function has no derivable name"
		}
		c.errs = append(c.errs, &ParseError{File: c.sourceFile, Message: reason})
		return FunctionRecord{}, false
	}

	contentStart := firstIdx + 1
	if contentStart < bodyClose && toks[contentStart].Text == ";" {
		contentStart++
	}

	var bodySource string
	if contentStart < bodyClose {
		bodySource = strings.TrimSpace(c.source[toks[contentStart].Pos:toks[bodyClose].Pos])
	}

	paramNames := []string{}
	for _, p := range parseParams(paramListSrc) {
		paramNames = append(paramNames, p.BoundNames...)
	}

	stmtPos, stmtEnd := c.statementSpan(parenOpen, bodyClose, isArrow)

	rec := FunctionRecord{
		FnID:         makeFnID(c.sourceFile, parentScopePath, name),
		Name:         name,
		ScopePath:    append([]string{}, parentScopePath...),
		ParamNames:   paramNames,
		ParamListSrc: strings.TrimSpace(paramListSrc),
		ClosureVars:  computeClosureVars(child.ownToks, child.flatten, enclosing),
		BodySource:   bodySource,
		IsAsync:      true,
		IsExported:   isExported,
		IsDefault:    isDefault,
		IsArrow:      isArrow,
		SourceFile:   c.sourceFile,
		StmtPos:      stmtPos,
		StmtEnd:      stmtEnd,
	}
	return rec, true
}

// statementSpan approximates the byte range of the whole declaration so
// codegen can replace it in place with a stub. It walks backward from
// the function's own leftmost token to the nearest statement-opening
// keyword (export/const/let/var) and forward past a trailing semicolon.
func (c *collector) statementSpan(parenOpen, bodyClose int, isArrow bool) (int, int) {
	toks := c.toks
	leftEdge := parenOpen
	if leftEdge < 0 {
		leftEdge = bodyClose
	}
	for leftEdge > 0 {
		prev := toks[leftEdge-1]
		switch prev.Text {
		case "async", "function", "(":
			leftEdge--
			continue
		}
		break
	}
	start := leftEdge
	for k := leftEdge - 1; k >= 0; k-- {
		switch toks[k].Text {
		case "=", ":":
			continue
		case "export", "default", "async", "function":
			start = k
			continue
		}
		if toks[k].Kind == TokIdent {
			start = k
			continue
		}
		if toks[k].Text == "const" || toks[k].Text == "let" || toks[k].Text == "var" {
			start = k
		}
		break
	}
	end := bodyClose
	if end+1 < len(toks) && toks[end+1].Text == ";" {
		end++
	}
	return toks[start].Pos, toks[end].End
}
