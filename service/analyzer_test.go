package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTextGen 按调用次数返回预置响应
type fakeTextGen struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeTextGen) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp, nil
}

func batchResponse(n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"scriptSegment":"seg-%d","visualPrompt":"vis-%d","motionPrompt":"mot-%d"}`, i, i, i)
	}
	return out + "]"
}

func TestAnalyzeBatchingAndProgress(t *testing.T) {
	gen := &fakeTextGen{responses: []string{batchResponse(4), batchResponse(4), batchResponse(2)}}
	a := NewAnalyzer(gen, 4)

	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("scene %d", i)
	}

	var progress [][2]int
	planned, err := a.Analyze(context.Background(), texts, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)
	require.Len(t, planned, 10)
	// 每批一次回调，粒度就是批
	assert.Equal(t, [][2]int{{4, 10}, {8, 10}, {10, 10}}, progress)
	assert.Equal(t, 3, gen.calls)
}

func TestAnalyzeAliasNormalization(t *testing.T) {
	gen := &fakeTextGen{responses: []string{
		`[{"korean_segment":"원문 그대로","visual_prompt":"a lake","motion_prompt":"pan left"}]`,
	}}
	a := NewAnalyzer(gen, 4)

	planned, err := a.Analyze(context.Background(), []string{"input text"}, nil)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Equal(t, "원문 그대로", planned[0].SourceText)
	assert.Equal(t, "a lake", planned[0].VisualPrompt)
	assert.Equal(t, "pan left", planned[0].MotionPrompt)
}

func TestAnalyzeMissingFieldsFallback(t *testing.T) {
	// 字段缺失只兜底，绝不丢分镜
	gen := &fakeTextGen{responses: []string{`[{"scriptSegment":"kept"}]`}}
	a := NewAnalyzer(gen, 4)

	planned, err := a.Analyze(context.Background(), []string{"source"}, nil)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Equal(t, "kept", planned[0].SourceText)
	assert.Equal(t, fallbackVisualPrompt, planned[0].VisualPrompt)
	assert.Equal(t, fallbackMotionPrompt, planned[0].MotionPrompt)
}

func TestAnalyzeShortResponsePadsScenes(t *testing.T) {
	// 响应条目少于批大小时按位置补齐，原文回退到输入
	gen := &fakeTextGen{responses: []string{`[{"scriptSegment":"only one","visualPrompt":"v"}]`}}
	a := NewAnalyzer(gen, 4)

	planned, err := a.Analyze(context.Background(), []string{"first", "second"}, nil)
	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, "only one", planned[0].SourceText)
	assert.Equal(t, "second", planned[1].SourceText)
	assert.Equal(t, fallbackVisualPrompt, planned[1].VisualPrompt)
}

func TestAnalyzeBatchFailureFailsWhole(t *testing.T) {
	gen := &fakeTextGen{err: errors.New("provider down")}
	a := NewAnalyzer(gen, 4)

	planned, err := a.Analyze(context.Background(), []string{"a", "b"}, nil)
	require.Error(t, err)
	assert.Nil(t, planned)
}

func TestAnalyzeMalformedResponse(t *testing.T) {
	gen := &fakeTextGen{responses: []string{"sorry, I cannot produce json"}}
	a := NewAnalyzer(gen, 4)

	_, err := a.Analyze(context.Background(), []string{"a"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestAnalyzePromptContainsVerbatimSegments(t *testing.T) {
	gen := &fakeTextGen{responses: []string{batchResponse(2)}}
	a := NewAnalyzer(gen, 4)

	_, err := a.Analyze(context.Background(), []string{"keep me verbatim", "me too"}, nil)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "keep me verbatim")
	assert.Contains(t, gen.prompts[0], "me too")
	assert.Contains(t, gen.prompts[0], styleDirective)
}
