package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usesandbox/sandbox/internal/directive"
)

func TestModule_EntryKeyedByFnID(t *testing.T) {
	recs := []directive.FunctionRecord{
		{
			FnID:         "greet_abcd1234",
			ParamListSrc: "name",
			BodySource:   `return "hello " + name;`,
		},
	}
	out := Module(recs, "")
	assert.Contains(t, out, `"greet_abcd1234": async (__closure, name) => {`)
	assert.Contains(t, out, "const {} = __closure;")
	assert.Contains(t, out, `return "hello " + name;`)
	assert.Contains(t, out, "export default {")
}

func TestModule_ClosureVarsDestructuredFromFirstArg(t *testing.T) {
	recs := []directive.FunctionRecord{
		{
			FnID:         "makeId_abcd1234",
			ParamListSrc: "n",
			BodySource:   "return prefix + n;",
			ClosureVars:  []string{"prefix"},
		},
	}
	out := Module(recs, "")
	assert.Contains(t, out, "const { prefix } = __closure;")
}

func TestModule_MultipleRecordsProduceMultipleEntries(t *testing.T) {
	recs := []directive.FunctionRecord{
		{FnID: "a_11111111", ParamListSrc: "", BodySource: "return 1;"},
		{FnID: "b_22222222", ParamListSrc: "", BodySource: "return 2;"},
	}
	out := Module(recs, "")
	assert.Contains(t, out, `"a_11111111":`)
	assert.Contains(t, out, `"b_22222222":`)
}

func TestModule_ImportLinesArePreserved(t *testing.T) {
	recs := []directive.FunctionRecord{{FnID: "f_00000000", BodySource: "return 1;"}}
	out := Module(recs, `import { id } from "./id.js";`)
	assert.Contains(t, out, `import { id } from "./id.js";`)
}

func TestFilteredImports_DropsUnwantedStatements(t *testing.T) {
	stmts := []string{`import a from "a";`, `import b from "b";`}
	out := FilteredImports(stmts, func(s string) (string, bool) { return s, s != `import b from "b";` })
	assert.Contains(t, out, `import a from "a";`)
	assert.NotContains(t, out, `import b from "b";`)
}

func TestFilteredImports_RewritesStatements(t *testing.T) {
	stmts := []string{`import { $ } from "sandbox";`}
	out := FilteredImports(stmts, func(s string) (string, bool) { return `import { $ } from "sandbox/shell";`, true })
	assert.Equal(t, `import { $ } from "sandbox/shell";`, out)
}
