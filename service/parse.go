package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*?)\\s*```")
)

// ExtractJSON 从模型原始输出中提取可解析的 JSON 片段并解出到 v。
// 顺序：严格解析 -> 去掉代码围栏 -> 截取最外层括号对（数组起始在前时优先数组）。
// 全部失败时返回 ErrMalformedResponse，附带原始文本便于排查。
func ExtractJSON(raw string, v interface{}) error {
	text := strings.TrimSpace(raw)
	if json.Unmarshal([]byte(text), v) == nil {
		return nil
	}

	if m := jsonBlockRegex.FindStringSubmatch(text); len(m) > 1 {
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), v) == nil {
			return nil
		}
		text = strings.TrimSpace(m[1])
	}

	candidate := bracketSlice(text)
	if candidate == "" {
		return fmt.Errorf("%w: no json structure in output: %s", ErrMalformedResponse, raw)
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("%w: %v: %s", ErrMalformedResponse, err, raw)
	}
	return nil
}

// bracketSlice 截取第一个 {/[ 到对应的最后一个 }/] 之间的子串，
// 数组起始先于对象起始时按数组截取。
func bracketSlice(text string) string {
	firstBrace := strings.Index(text, "{")
	lastBrace := strings.LastIndex(text, "}")
	firstBracket := strings.Index(text, "[")
	lastBracket := strings.LastIndex(text, "]")

	start, end := -1, -1
	if firstBracket != -1 && (firstBrace == -1 || firstBracket < firstBrace) {
		start, end = firstBracket, lastBracket
	} else if firstBrace != -1 {
		start, end = firstBrace, lastBrace
	}
	if start == -1 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// pickString 按别名顺序取第一个非空字符串字段，全部缺失时返回 fallback
func pickString(item map[string]interface{}, aliases []string, fallback string) string {
	for _, key := range aliases {
		if v, ok := item[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return fallback
}
