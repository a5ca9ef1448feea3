package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usesandbox/sandbox/internal/directive"
)

func TestStub_NamedExportedFunction(t *testing.T) {
	rec := directive.FunctionRecord{
		FnID:         "greet_abcd1234",
		Name:         "greet",
		ParamListSrc: "name",
		IsAsync:      true,
		IsExported:   true,
	}
	out := Stub(rec)
	assert.Contains(t, out, "export async function greet(name)")
	assert.Contains(t, out, `__runSandboxFn("greet_abcd1234", [name], undefined)`)
}

func TestStub_ArrowConstAssignment(t *testing.T) {
	rec := directive.FunctionRecord{
		FnID:         "compute_abcd1234",
		Name:         "compute",
		ParamListSrc: "a, b",
		IsAsync:      true,
		IsArrow:      true,
	}
	out := Stub(rec)
	assert.Contains(t, out, "const compute = async (a, b) => {")
	assert.Contains(t, out, `__runSandboxFn("compute_abcd1234", [a, b], undefined)`)
}

func TestStub_ClosureVarsForwardedAsObjectLiteral(t *testing.T) {
	rec := directive.FunctionRecord{
		FnID:         "makeId_abcd1234",
		Name:         "makeId",
		ParamListSrc: "n",
		IsAsync:      true,
		ClosureVars:  []string{"prefix"},
	}
	out := Stub(rec)
	assert.Contains(t, out, `{ prefix }`)
}

func TestStub_DestructuredParamUsesSyntheticForwardName(t *testing.T) {
	rec := directive.FunctionRecord{
		FnID:         "charge_abcd1234",
		Name:         "charge",
		ParamListSrc: "{ amount, currency = \"usd\" }",
		IsAsync:      true,
	}
	out := Stub(rec)
	assert.Contains(t, out, "__arg0")
	assert.NotContains(t, out, "amount,")
}

func TestStub_RestParameterIsConcatenated(t *testing.T) {
	rec := directive.FunctionRecord{
		FnID:         "sum_abcd1234",
		Name:         "sum",
		ParamListSrc: "first, ...rest",
		IsAsync:      true,
	}
	out := Stub(rec)
	assert.Contains(t, out, "...rest")
	assert.Contains(t, out, "[first].concat(rest)")
}

func TestStub_ZeroParameters(t *testing.T) {
	rec := directive.FunctionRecord{
		FnID:         "now_abcd1234",
		Name:         "now",
		ParamListSrc: "",
		IsAsync:      true,
	}
	out := Stub(rec)
	assert.Contains(t, out, "async function now()")
	assert.Contains(t, out, `__runSandboxFn("now_abcd1234", [], undefined)`)
}
