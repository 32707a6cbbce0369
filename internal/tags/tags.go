// Package tags derives semantic tags (keywords, date, scene category)
// from free text. It is deliberately lexical: retrieval quality hinges
// on matching the exact cues the rest of the pipeline uses, not on a
// real NLP stack.
package tags

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const keywordLimit = 5

// stopWords are filtered out of keyword candidates.
var stopWords = map[string]struct{}{
	"的": {}, "了": {}, "是": {}, "在": {}, "我": {}, "有": {}, "和": {},
	"就": {}, "不": {}, "人": {}, "都": {}, "一": {}, "一个": {}, "上": {},
	"也": {}, "很": {}, "到": {}, "说": {}, "要": {}, "去": {}, "你": {},
	"会": {}, "着": {}, "没有": {}, "看": {}, "好": {}, "自己": {}, "这": {},
}

// sceneRule maps substring cues to a scene category; first match wins.
type sceneRule struct {
	cues  []string
	scene string
}

var sceneRules = []sceneRule{
	{cues: []string{"天气", "气温"}, scene: "weather"},
	{cues: []string{"推荐", "餐厅", "食物"}, scene: "recommendation"},
	{cues: []string{"过敏", "食物", "不能吃"}, scene: "health"},
	{cues: []string{"价格", "贵", "便宜"}, scene: "price"},
}

// Generate derives a deduplicated tag set for content plus context: the
// top keywords by frequency, one time:<date> tag and one scene:<category>
// tag.
func Generate(content, context string) []string {
	return generateAt(content, context, time.Now())
}

func generateAt(content, context string, now time.Time) []string {
	out := extractKeywords(content, context)
	out = append(out, "time:"+now.UTC().Format("2006-01-02"))
	out = append(out, "scene:"+detectScene(content, context))
	return dedupe(out)
}

// extractKeywords tokenizes on whitespace, drops single-rune tokens and
// stop words, and keeps the top keywordLimit tokens by descending
// frequency (ties broken by first occurrence).
func extractKeywords(content, context string) []string {
	words := strings.Fields(strings.ToLower(content + " " + context))

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 1 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	first := make(map[string]int, len(order))
	for i, w := range order {
		first[w] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return first[order[i]] < first[order[j]]
	})

	if len(order) > keywordLimit {
		order = order[:keywordLimit]
	}
	return order
}

// detectScene classifies the combined text into a fixed scene category.
func detectScene(content, context string) string {
	combined := strings.ToLower(content + " " + context)
	for _, rule := range sceneRules {
		for _, cue := range rule.cues {
			if strings.Contains(combined, cue) {
				return rule.scene
			}
		}
	}
	return "general"
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, t := range in {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
