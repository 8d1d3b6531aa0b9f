package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONStrict(t *testing.T) {
	var items []map[string]interface{}
	err := ExtractJSON(`[{"a":"1"},{"a":"2"}]`, &items)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestExtractJSONCodeFence(t *testing.T) {
	raw := "```json\n[{\"scriptSegment\":\"hello\"}]\n```"
	var fenced []map[string]interface{}
	require.NoError(t, ExtractJSON(raw, &fenced))

	var direct []map[string]interface{}
	require.NoError(t, ExtractJSON(`[{"scriptSegment":"hello"}]`, &direct))
	assert.Equal(t, direct, fenced)
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw := "Here are your scenes:\n[{\"visualPrompt\":\"a dog\"}]\nHope this helps!"
	var items []map[string]interface{}
	require.NoError(t, ExtractJSON(raw, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "a dog", items[0]["visualPrompt"])
}

func TestExtractJSONArrayPreferredOverObject(t *testing.T) {
	// 数组起始先于对象起始时按数组截取
	raw := `noise [ {"k":"v"} ] trailing {"ignored":true}`
	var items []map[string]interface{}
	require.NoError(t, ExtractJSON(raw, &items))
	require.Len(t, items, 1)
}

func TestExtractJSONNoBrackets(t *testing.T) {
	var v interface{}
	err := ExtractJSON("there is no json here at all", &v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
	// 原始文本要进错误信息，便于排查
	assert.Contains(t, err.Error(), "no json here")
}

func TestExtractJSONGarbageBrackets(t *testing.T) {
	var v interface{}
	err := ExtractJSON("prefix [not, valid json at all} suffix", &v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestPickStringAliasOrder(t *testing.T) {
	item := map[string]interface{}{
		"korean_segment": "안녕하세요",
		"segment":        "ignored",
	}
	got := pickString(item, []string{"scriptSegment", "korean_segment", "segment"}, "fallback")
	assert.Equal(t, "안녕하세요", got)
}

func TestPickStringFallback(t *testing.T) {
	assert.Equal(t, "fb", pickString(map[string]interface{}{}, []string{"a", "b"}, "fb"))
	// 空串视为缺失
	assert.Equal(t, "fb", pickString(map[string]interface{}{"a": "  "}, []string{"a"}, "fb"))
	// 非字符串类型视为缺失
	assert.Equal(t, "fb", pickString(map[string]interface{}{"a": 3}, []string{"a"}, "fb"))
}
