package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_TopLevelAnnotatedFunction(t *testing.T) {
	src := `
export async function greet(name) {
  "use sandbox";
  return "hello " + name;
}
`
	recs, err := Collect(src, "greet.js")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "greet", rec.Name)
	assert.True(t, rec.IsExported)
	assert.False(t, rec.IsDefault)
	assert.False(t, rec.IsArrow)
	assert.Equal(t, []string{"name"}, rec.ParamNames)
	assert.Contains(t, rec.BodySource, `return "hello " + name;`)
	assert.Empty(t, rec.ClosureVars)
}

func TestCollect_NonAnnotatedFunctionIsIgnored(t *testing.T) {
	src := `
async function notAnnotated() {
  return 1;
}
`
	recs, err := Collect(src, "plain.js")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCollect_SyncFunctionWithDirectiveIsIgnored(t *testing.T) {
	src := `
function notAsync() {
  "use sandbox";
  return 1;
}
`
	recs, err := Collect(src, "sync.js")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCollect_ArrowConstAssignment(t *testing.T) {
	src := `
const compute = async (a, b) => {
  "use sandbox";
  return a + b;
};
`
	recs, err := Collect(src, "arrow.js")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "compute", rec.Name)
	assert.True(t, rec.IsArrow)
	assert.Equal(t, []string{"a", "b"}, rec.ParamNames)
}

func TestCollect_ClosureCapture(t *testing.T) {
	src := `
const prefix = "order-";
export async function makeId(n) {
  "use sandbox";
  return prefix + n;
}
`
	recs, err := Collect(src, "closure.js")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"prefix"}, recs[0].ClosureVars)
}

func TestCollect_MultipleClosureVarsAreSortedLexicographically(t *testing.T) {
	src := `
const zebra = "z-";
const apple = "a-";
const mango = "m-";
export async function makeId(n) {
  "use sandbox";
  return zebra + mango + apple + n;
}
`
	recs, err := Collect(src, "multiclosure.js")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"apple", "mango", "zebra"}, recs[0].ClosureVars)
}

func TestCollect_ShadowedOuterNameIsNotACapture(t *testing.T) {
	src := `
const prefix = "outer-";
export async function makeId(prefix) {
  "use sandbox";
  return prefix;
}
`
	recs, err := Collect(src, "shadow.js")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].ClosureVars)
}

func TestCollect_NestedAnnotatedFunctionsProduceTwoRecords(t *testing.T) {
	src := `
export async function outer(x) {
  "use sandbox";
  async function inner(y) {
    "use sandbox";
    return x + y;
  }
  return inner;
}
`
	recs, err := Collect(src, "nested.js")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	var outer, inner *FunctionRecord
	for i := range recs {
		switch recs[i].Name {
		case "outer":
			outer = &recs[i]
		case "inner":
			inner = &recs[i]
		}
	}
	require.NotNil(t, outer)
	require.NotNil(t, inner)
	assert.Empty(t, outer.ScopePath)
	assert.Equal(t, []string{"outer"}, inner.ScopePath)
	assert.Equal(t, []string{"x"}, inner.ClosureVars)
	assert.NotEqual(t, outer.FnID, inner.FnID)
}

func TestCollect_StableIdAcrossUnrelatedEdits(t *testing.T) {
	src1 := `
export async function total(items) {
  "use sandbox";
  return items.length;
}
`
	src2 := `
// a leading comment that changes byte offsets but not structure
export async function total(items) {
  "use sandbox";
  return items.length;
}
`
	recs1, err := Collect(src1, "total.js")
	require.NoError(t, err)
	recs2, err := Collect(src2, "total.js")
	require.NoError(t, err)
	require.Len(t, recs1, 1)
	require.Len(t, recs2, 1)
	assert.Equal(t, recs1[0].FnID, recs2[0].FnID)
}

func TestCollect_ZeroParameterRoundTrip(t *testing.T) {
	src := `
export async function now() {
  "use sandbox";
  return Date.now();
}
`
	recs, err := Collect(src, "now.js")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].ParamNames)
	assert.Equal(t, "", recs[0].ParamListSrc)
}

func TestCollect_AnonymousDefaultExportFailsLoudly(t *testing.T) {
	src := `
export default async function (x) {
  "use sandbox";
  return x;
}
`
	_, err := Collect(src, "default.js")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default-exported annotated function has no derivable name")
}

func TestCollect_DestructuredAndDefaultedParams(t *testing.T) {
	src := `
export async function charge({ amount, currency = "usd" }, ...rest) {
  "use sandbox";
  return amount;
}
`
	recs, err := Collect(src, "charge.js")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.ElementsMatch(t, []string{"amount", "currency", "rest"}, recs[0].ParamNames)
}
