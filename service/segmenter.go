package service

import "strings"

// SegmentText 把自由文本切成分镜文本：按段落拆分，段内按句子贪心分组，
// 每组最多 maxGroupSize 句，组不跨段落。纯函数，无 I/O。
func SegmentText(text string, maxGroupSize int) []string {
	if maxGroupSize < 1 {
		maxGroupSize = 1
	}
	var groups []string
	for _, para := range splitParagraphs(text) {
		sentences := splitSentences(para)
		for start := 0; start < len(sentences); start += maxGroupSize {
			end := start + maxGroupSize
			if end > len(sentences) {
				end = len(sentences)
			}
			groups = append(groups, strings.Join(sentences[start:end], " "))
		}
	}
	return groups
}

// splitParagraphs 按行边界拆段，丢弃空段
func splitParagraphs(text string) []string {
	var paras []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paras = append(paras, line)
		}
	}
	return paras
}

// splitSentences 以 . ! ?（可紧跟右引号）为句子边界；
// 末尾没有终止标点的残句保留为独立句子。
func splitSentences(para string) []string {
	var sentences []string
	runes := []rune(para)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		// 终止标点后的右引号归属当前句
		if end < len(runes) && isClosingQuote(runes[end]) {
			end++
			i++
		}
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', '」', '』', '»':
		return true
	}
	return false
}
