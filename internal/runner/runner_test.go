package runner

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_DefaultsNilArgsToEmptyArray(t *testing.T) {
	data, err := Encode(Request{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"args":[]`)
}

func TestEncode_OmitsClosureVarsWhenEmpty(t *testing.T) {
	data, err := Encode(Request{Args: []any{1}})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "closureVars")
}

func TestEncode_IncludesClosureVarsWhenPresent(t *testing.T) {
	data, err := Encode(Request{ClosureVars: map[string]any{"prefix": "x-"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"closureVars":{"prefix":"x-"}`)
}

func TestDecode_ParsesResultLine(t *testing.T) {
	resp, err := Decode([]byte(`{"__result":42}`))
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.Equal(t, json.RawMessage("42"), resp.Result)
}

func TestDecode_ParsesErrorLine(t *testing.T) {
	resp, err := Decode([]byte(`{"__error":{"message":"boom","stack":"at x"}}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "boom", resp.Error.Message)
	assert.Equal(t, "at x", resp.Error.Stack)
}

func TestDecode_RejectsMalformedLine(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}
