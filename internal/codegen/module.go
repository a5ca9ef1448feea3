package codegen

import (
	"fmt"
	"strings"

	"github.com/usesandbox/sandbox/internal/directive"
)

// Module renders the generated per-file sandbox module for every
// annotated function found in one source file. Each function becomes
// one entry of the module's default-exported map, keyed by fnID, so the
// runner can look a function up without caring how JS-legal its id is.
// Every entry takes the captured closure values as its first argument
// (an empty object when there are none) followed by the function's
// original parameter list, reproduced verbatim so the body keeps
// referencing its real parameter names and destructuring patterns.
func Module(records []directive.FunctionRecord, importLines string) string {
	var b strings.Builder
	b.WriteString("// generated from \"use sandbox\" annotated functions — do not edit\n")
	if importLines != "" {
		b.WriteString(importLines)
		b.WriteString("\n")
	}
	b.WriteString("export default {\n")
	for _, rec := range records {
		b.WriteString(entry(rec))
	}
	b.WriteString("};\n")
	return b.String()
}

func entry(rec directive.FunctionRecord) string {
	destructure := "{}"
	if len(rec.ClosureVars) > 0 {
		destructure = "{ " + strings.Join(rec.ClosureVars, ", ") + " }"
	}
	sig := rec.ParamListSrc
	body := rec.BodySource
	return fmt.Sprintf("  %q: async (__closure, %s) => {\n    const %s = __closure;\n%s\n  },\n",
		rec.FnID, sig, destructure, indent(body))
}

func indent(src string) string {
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

// FilteredImports re-emits a source file's top-level import statements
// for reuse inside a generated module. transform is called once per
// statement and returns the statement to emit (verbatim, or rewritten
// to a different specifier) and whether to keep it at all; [BUNDLE]'s
// caller uses it to drop type-only imports and host-only runtime
// imports that don't exist inside the VM, and to rewrite the shell
// helper's import to its VM-local subpath. Everything transform keeps
// is resolved the same way the bundler resolves the project's own
// module graph.
func FilteredImports(importStmts []string, transform func(string) (string, bool)) string {
	var kept []string
	for _, stmt := range importStmts {
		out, keep := stmt, true
		if transform != nil {
			out, keep = transform(stmt)
		}
		if keep {
			kept = append(kept, out)
		}
	}
	return strings.Join(kept, "\n")
}
