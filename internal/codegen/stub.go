// Package codegen turns directive.FunctionRecord values into the two
// pieces of generated source the bundler needs: an in-place stub that
// replaces the original declaration, and a per-file sandbox module that
// carries the real body into the bundle.
package codegen

import (
	"fmt"
	"strings"

	"github.com/usesandbox/sandbox/internal/directive"
)

// Stub renders the text that replaces rec's original declaration in the
// source file. It preserves the declaration's name, arity, async-ness
// and exportedness; destructured parameters are replaced by a
// synthetic positional identifier so the stub can forward the whole
// incoming value without trying to re-derive the pattern, while keeping
// any default value attached so it still applies locally.
func Stub(rec directive.FunctionRecord) string {
	params := directive.ParseParams(rec.ParamListSrc)
	sig := stubParamList(params)
	call := callExpr(rec, params)

	var b strings.Builder
	if rec.IsExported {
		b.WriteString("export ")
		if rec.IsDefault {
			b.WriteString("default ")
		}
	}
	if rec.IsArrow {
		if !rec.IsDefault {
			fmt.Fprintf(&b, "const %s = ", rec.Name)
		}
		fmt.Fprintf(&b, "async (%s) => {\n\treturn await %s;\n}", sig, call)
	} else {
		fmt.Fprintf(&b, "async function %s(%s) {\n\treturn await %s;\n}", rec.Name, sig, call)
	}
	if rec.IsArrow {
		b.WriteString(";")
	}
	return b.String()
}

func stubParamList(params []directive.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		text := p.ForwardName
		if p.DefaultSrc != "" {
			text += " = " + p.DefaultSrc
		}
		if p.IsRest {
			text = "..." + text
		}
		parts[i] = text
	}
	return strings.Join(parts, ", ")
}

func callExpr(rec directive.FunctionRecord, params []directive.Param) string {
	argsExpr := argsArrayExpr(params)
	closureExpr := "undefined"
	if len(rec.ClosureVars) > 0 {
		closureExpr = "{ " + strings.Join(rec.ClosureVars, ", ") + " }"
	}
	return fmt.Sprintf("__runSandboxFn(%q, %s, %s)", rec.FnID, argsExpr, closureExpr)
}

func argsArrayExpr(params []directive.Param) string {
	if len(params) == 0 {
		return "[]"
	}
	var items []string
	var spread string
	for _, p := range params {
		if p.IsRest {
			spread = p.ForwardName
			continue
		}
		items = append(items, p.ForwardName)
	}
	lit := "[" + strings.Join(items, ", ") + "]"
	if spread != "" {
		if len(items) == 0 {
			return spread
		}
		return lit + ".concat(" + spread + ")"
	}
	return lit
}
