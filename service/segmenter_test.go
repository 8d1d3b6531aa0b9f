package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentTextEmptyInput(t *testing.T) {
	for _, g := range []int{1, 2, 4} {
		assert.Empty(t, SegmentText("", g))
		assert.Empty(t, SegmentText("   \n\n  ", g))
	}
}

func TestSegmentTextSingleGroup(t *testing.T) {
	got := SegmentText("Hello world. Bye.", 2)
	require.Equal(t, []string{"Hello world. Bye."}, got)
}

func TestSegmentTextGroupSizeLimit(t *testing.T) {
	text := "One. Two. Three. Four. Five."
	got := SegmentText(text, 2)
	require.Equal(t, []string{"One. Two.", "Three. Four.", "Five."}, got)

	for _, group := range got {
		count := strings.Count(group, ".")
		assert.LessOrEqual(t, count, 2)
	}
}

func TestSegmentTextParagraphBoundary(t *testing.T) {
	text := "First one. First two.\nSecond one. Second two. Second three."
	got := SegmentText(text, 4)
	// 分组不跨段落：第一段即使未满 4 句也单独成组
	require.Equal(t, []string{
		"First one. First two.",
		"Second one. Second two. Second three.",
	}, got)
}

func TestSegmentTextTrailingFragment(t *testing.T) {
	got := SegmentText("A full sentence. and a trailing fragment", 4)
	require.Equal(t, []string{"A full sentence. and a trailing fragment"}, got)

	got = SegmentText("A full sentence. and a trailing fragment", 1)
	require.Equal(t, []string{"A full sentence.", "and a trailing fragment"}, got)
}

func TestSegmentTextClosingQuote(t *testing.T) {
	got := SegmentText(`She said "stop!" Then silence.`, 1)
	require.Equal(t, []string{`She said "stop!"`, "Then silence."}, got)
}

func TestSegmentTextReconstruction(t *testing.T) {
	texts := []string{
		"Alpha beta. Gamma delta! Epsilon? Zeta eta.",
		"One.\n\nTwo. Three.\nFour. Five. Six. Seven. Eight.",
		"No terminal punctuation at all",
	}
	for _, text := range texts {
		for _, g := range []int{1, 2, 3, 4} {
			groups := SegmentText(text, g)
			joined := strings.Join(groups, " ")
			// 句子内容与标点完整保留
			expected := strings.Join(SegmentText(text, 1), " ")
			assert.Equal(t, expected, joined, "text=%q g=%d", text, g)
			for _, group := range groups {
				assert.NotEmpty(t, group)
			}
		}
	}
}
