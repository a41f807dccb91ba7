package llmtext

import (
	"errors"
	"testing"

	"prepmate/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject_FenceAndProseWrapped(t *testing.T) {
	raw := "Here you go:\n```json\n{\"description\":\"X\"}\n```"
	span, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.Equal(t, `{"description":"X"}`, span)

	var out map[string]string
	require.NoError(t, Decode(span, &out))
	assert.Equal(t, "X", out["description"])
}

func TestExtractObject_NoBraces(t *testing.T) {
	_, ok := ExtractObject("Sorry, I cannot help with that.")
	assert.False(t, ok)
}

func TestExtractObject_ReversedBraces(t *testing.T) {
	_, ok := ExtractObject("} nothing useful {")
	assert.False(t, ok)
}

func TestDecode_BareNewlineInsideString(t *testing.T) {
	raw := "{\"description\":\"line one\nline two\"}"
	var out map[string]string
	require.NoError(t, Decode(raw, &out))
	assert.Equal(t, "line one\nline two", out["description"])
}

func TestDecode_StrayBackslash(t *testing.T) {
	raw := `{"path":"C:\Users\x"}`
	var out map[string]string
	require.NoError(t, Decode(raw, &out))
	assert.Contains(t, out["path"], "C:")
}

func TestDecode_UnrecoverableSignalsUnparsable(t *testing.T) {
	var out map[string]string
	err := Decode(`{"description": not even close`, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnparsable))
}

func TestEscapeControlChars_LeavesStructuralWhitespace(t *testing.T) {
	raw := "{\n  \"a\": \"b\"\n}"
	assert.Equal(t, raw, EscapeControlChars(raw))
}

func TestEscapeControlChars_TabInsideString(t *testing.T) {
	got := EscapeControlChars("{\"a\":\"x\ty\"}")
	assert.Equal(t, `{"a":"x\ty"}`, got)
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StripFences(tc.in))
	}
}
