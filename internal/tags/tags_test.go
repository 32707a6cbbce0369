package tags

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerate_TimeAndSceneTagsExactlyOnce(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := generateAt("今天北京天气怎么样", "user_query", now)

	var timeTags, sceneTags []string
	for _, tag := range got {
		if strings.HasPrefix(tag, "time:") {
			timeTags = append(timeTags, tag)
		}
		if strings.HasPrefix(tag, "scene:") {
			sceneTags = append(sceneTags, tag)
		}
	}
	require.Equal(t, []string{"time:2025-03-14"}, timeTags)
	require.Equal(t, []string{"scene:weather"}, sceneTags)
}

func TestGenerate_NoDuplicates(t *testing.T) {
	got := Generate("apple apple apple banana banana cherry", "fruit fruit")
	seen := map[string]bool{}
	for _, tag := range got {
		require.False(t, seen[tag], "duplicate tag %q", tag)
		seen[tag] = true
	}
}

func TestExtractKeywords_FrequencyRankingAndLimit(t *testing.T) {
	// "beta" appears three times, "alpha" twice, then four singles; only
	// the five highest-frequency tokens survive.
	got := extractKeywords("beta beta beta alpha alpha one two three four", "")
	require.Len(t, got, 5)
	require.Equal(t, "beta", got[0])
	require.Equal(t, "alpha", got[1])
}

func TestExtractKeywords_FiltersStopWordsAndShortTokens(t *testing.T) {
	got := extractKeywords("我 的 了 x 餐厅", "")
	require.Equal(t, []string{"餐厅"}, got)
}

func TestDetectScene_FirstMatchingRuleWins(t *testing.T) {
	cases := []struct {
		text  string
		scene string
	}{
		{"今天天气怎么样", "weather"},
		{"推荐一个餐厅", "recommendation"},
		{"我对海鲜过敏", "health"},
		{"这个价格太高了", "price"},
		{"你好", "general"},
		// 食物 appears in both recommendation and health rule sets; the
		// recommendation rule is ordered first.
		{"有什么好吃的食物", "recommendation"},
	}
	for _, c := range cases {
		require.Equal(t, c.scene, detectScene(c.text, ""), "text %q", c.text)
	}
}

func TestGenerate_KeywordsLowerCased(t *testing.T) {
	got := Generate("Weather REPORT", "")
	require.Contains(t, got, "weather")
	require.Contains(t, got, "report")
}
