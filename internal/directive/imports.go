package directive

import (
	"fmt"
	"strings"
)

// runtimePackageSpecifier is the npm package annotated source files
// import run() and the $ shell helper from. Code inside the VM has no
// orchestrator client to talk to, so an import from this package needs
// categorising rather than the verbatim pass-through every other
// import gets.
const runtimePackageSpecifier = "sandbox"

// runtimeShellExport is the one export of runtimePackageSpecifier that
// does have a VM-local equivalent: $ has no host-only dependency of
// its own, it just normally ships from the same package as run() for
// ergonomics.
const runtimeShellExport = "$"

// CollectImports returns every import statement in source, verbatim and
// in source order, using the same tokenizer the annotated function
// collector runs over the file. The scan does not track nesting: an
// `import` keyword inside a function body (a dynamic import(...)) is
// sliced out the same way, up to the next `;`. internal/codegen re-emits a
// filtered subset of these into each generated module so a stub's body
// can still reach whatever the original file imported.
func CollectImports(source string) []string {
	toks := tokenize(source)
	var out []string
	i := 0
	for i < len(toks) {
		if toks[i].Text != "import" {
			i++
			continue
		}
		start := toks[i].Pos
		j := i
		for j < len(toks) && toks[j].Text != ";" && toks[j].Kind != TokEOF {
			j++
		}
		end := toks[j].End
		if j >= len(toks) || toks[j].Kind == TokEOF {
			if j > i {
				end = toks[j-1].End
			}
		}
		out = append(out, strings.TrimSpace(source[start:end]))
		i = j + 1
	}
	return out
}

// IsTypeOnlyImport reports whether stmt is a TypeScript `import type`
// statement. These have no runtime representation, so re-emitting one
// into a generated module would just throw on a module that doesn't
// exist at build output time.
func IsTypeOnlyImport(stmt string) bool {
	trimmed := strings.TrimSpace(stmt)
	return strings.HasPrefix(trimmed, "import type ") || strings.HasPrefix(trimmed, "import type{")
}

// CategorizeRuntimeImport reports how stmt should be re-emitted into a
// generated module, implementing spec.md §226's three-way split for
// imports of the orchestrator's own runtime package:
//   - "drop": stmt imports the runtime package for host-only symbols
//     (run, a bare or default import of the package itself) that don't
//     exist inside the VM.
//   - "rewrite": stmt imports the shell helper, possibly alongside
//     host-only symbols; rewritten keeps only the helper and points it
//     at the package's VM-local subpath so the bundle doesn't pull in
//     the host orchestrator client.
//   - "keep": any import that isn't of the runtime package passes
//     through verbatim; rewritten equals stmt.
func CategorizeRuntimeImport(stmt string) (action, rewritten string) {
	toks := tokenize(stmt)
	if moduleSpecifier(toks) != runtimePackageSpecifier {
		return "keep", stmt
	}

	names := namedImportNames(toks)
	for _, n := range names {
		if n == runtimeShellExport {
			return "rewrite", fmt.Sprintf(`import { %s } from %q;`, runtimeShellExport, runtimePackageSpecifier+"/shell")
		}
	}
	return "drop", ""
}

func moduleSpecifier(toks []Token) string {
	for i := len(toks) - 1; i >= 0; i-- {
		if toks[i].Kind == TokString {
			return strings.Trim(toks[i].Text, `"'`)
		}
	}
	return ""
}

func namedImportNames(toks []Token) []string {
	var names []string
	depth := 0
	for _, t := range toks {
		switch {
		case t.Text == "{":
			depth++
		case t.Text == "}":
			depth--
		case depth > 0 && t.Kind == TokIdent && t.Text != "as":
			names = append(names, t.Text)
		}
	}
	return names
}
