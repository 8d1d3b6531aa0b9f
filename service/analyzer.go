package service

import (
	"context"
	"fmt"
	"strings"
)

// 固定画风约束，所有批次共用，保证跨分镜角色/风格一致
const styleDirective = "Consistent character: a calm Korean woman in her 30s, " +
	"soft watercolor illustration style, muted warm palette, cinematic lighting."

// 字段别名表：不同模型对同一逻辑字段的命名不一致，按顺序取第一个命中的
var (
	sceneTextAliases    = []string{"scriptSegment", "korean_segment", "segment", "sourceText", "text"}
	visualPromptAliases = []string{"visualPrompt", "visual_prompt", "imagePrompt", "image_prompt", "prompt"}
	motionPromptAliases = []string{"motionPrompt", "motion_prompt", "videoPrompt", "video_prompt", "motion"}
)

// 可选字段完全缺失时的兜底值
const (
	fallbackVisualPrompt = "A quiet cinematic scene that matches the narration."
	fallbackMotionPrompt = "Slow gentle camera push-in, minimal motion."
)

// PlannedScene 提示词分析的产出，与输入分镜一一对应且保序
type PlannedScene struct {
	SourceText   string
	VisualPrompt string
	MotionPrompt string
}

// Analyzer 成批调用结构化生成，把分镜原文变成视觉/运动提示词
type Analyzer struct {
	gen       TextGenerator
	batchSize int
}

func NewAnalyzer(gen TextGenerator, batchSize int) *Analyzer {
	if batchSize < 1 {
		batchSize = 4
	}
	return &Analyzer{gen: gen, batchSize: batchSize}
}

// Analyze 按固定批大小处理，每批一次外部调用；任一批失败则整体失败，
// 不提交部分结果（计划阶段重试成本低）。每批完成后回调 done/total。
func (a *Analyzer) Analyze(ctx context.Context, sceneTexts []string, onProgress func(done, total int)) ([]PlannedScene, error) {
	total := len(sceneTexts)
	planned := make([]PlannedScene, 0, total)

	for start := 0; start < total; start += a.batchSize {
		end := start + a.batchSize
		if end > total {
			end = total
		}
		batch := sceneTexts[start:end]

		raw, err := a.gen.GenerateText(ctx, buildAnalyzePrompt(batch))
		if err != nil {
			return nil, fmt.Errorf("analyze batch %d failed: %w", start/a.batchSize+1, err)
		}

		var items []map[string]interface{}
		if err := ExtractJSON(raw, &items); err != nil {
			return nil, err
		}

		// 按位置归一化；响应条目不足时用兜底值补齐，绝不丢分镜
		for i, src := range batch {
			var item map[string]interface{}
			if i < len(items) {
				item = items[i]
			}
			planned = append(planned, normalizePlannedScene(item, src))
		}

		if onProgress != nil {
			onProgress(end, total)
		}
	}
	return planned, nil
}

// normalizePlannedScene 别名解析 + 兜底：原文缺失时回退到输入原文本身
func normalizePlannedScene(item map[string]interface{}, sourceText string) PlannedScene {
	if item == nil {
		return PlannedScene{
			SourceText:   sourceText,
			VisualPrompt: fallbackVisualPrompt,
			MotionPrompt: fallbackMotionPrompt,
		}
	}
	return PlannedScene{
		SourceText:   pickString(item, sceneTextAliases, sourceText),
		VisualPrompt: pickString(item, visualPromptAliases, fallbackVisualPrompt),
		MotionPrompt: pickString(item, motionPromptAliases, fallbackMotionPrompt),
	}
}

func buildAnalyzePrompt(batch []string) string {
	var b strings.Builder
	b.WriteString("You are planning scenes for a narrated video.\n")
	b.WriteString(styleDirective)
	b.WriteString("\nFor each numbered segment below, produce one JSON object with fields ")
	b.WriteString(`"scriptSegment" (the segment text VERBATIM, do not translate or edit), `)
	b.WriteString(`"visualPrompt" (English image description) and "motionPrompt" (English camera/subject motion).`)
	b.WriteString("\nReturn ONLY a JSON array with exactly one object per segment, in order.\n\n")
	for i, s := range batch {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}
