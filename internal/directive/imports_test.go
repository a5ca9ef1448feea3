package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectImports_ReturnsTopLevelStatementsVerbatim(t *testing.T) {
	src := `import fs from "fs";
import { id } from "./id.js";

export async function greet(name) {
  "use sandbox";
  return id(name);
}
`
	imports := CollectImports(src)
	assert.Equal(t, []string{`import fs from "fs";`, `import { id } from "./id.js";`}, imports)
}

func TestCollectImports_IgnoresNonImportStatements(t *testing.T) {
	src := `const x = 1;
export function f() { return x; }
`
	assert.Empty(t, CollectImports(src))
}

func TestIsTypeOnlyImport_MatchesImportTypeStatements(t *testing.T) {
	assert.True(t, IsTypeOnlyImport(`import type { Foo } from "./foo";`))
	assert.False(t, IsTypeOnlyImport(`import { Foo } from "./foo";`))
}

func TestCategorizeRuntimeImport_KeepsUnrelatedImports(t *testing.T) {
	action, rewritten := CategorizeRuntimeImport(`import { id } from "./id.js";`)
	assert.Equal(t, "keep", action)
	assert.Equal(t, `import { id } from "./id.js";`, rewritten)
}

func TestCategorizeRuntimeImport_DropsHostOnlyRuntimeSymbols(t *testing.T) {
	action, _ := CategorizeRuntimeImport(`import { run } from "sandbox";`)
	assert.Equal(t, "drop", action)
}

func TestCategorizeRuntimeImport_DropsBareRuntimePackageImport(t *testing.T) {
	action, _ := CategorizeRuntimeImport(`import sandbox from "sandbox";`)
	assert.Equal(t, "drop", action)
}

func TestCategorizeRuntimeImport_RewritesShellHelperToSubpath(t *testing.T) {
	action, rewritten := CategorizeRuntimeImport(`import { $ } from "sandbox";`)
	assert.Equal(t, "rewrite", action)
	assert.Equal(t, `import { $ } from "sandbox/shell";`, rewritten)
}

func TestCategorizeRuntimeImport_RewritesShellHelperEvenAlongsideHostOnlySymbols(t *testing.T) {
	action, rewritten := CategorizeRuntimeImport(`import { run, $ } from "sandbox";`)
	assert.Equal(t, "rewrite", action)
	assert.Equal(t, `import { $ } from "sandbox/shell";`, rewritten)
}
