// Package prompt composes the augmented system prompt for a turn. The
// assembly is pure text concatenation in a fixed section order: given
// identical inputs the output is byte-identical.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chatforge/chatforge/internal/model"
)

// DefaultPersona is the base coach persona used when no override is
// configured.
const DefaultPersona = `你是一名专业的教练，擅长根据用户的兴趣设定目标并提供指导。请以自然、友好的人类口吻与用户交流，避免使用格式化的标题或生硬的结构。

当用户分享兴趣时，帮助他们设定清晰可行的目标，包含明确的时间框架和可衡量的标准。在用户提问或日常对话时，提供简单实用的回答，确保内容易于理解和执行。

如果有联网搜索结果，请优先参考这些信息来回答，确保内容的时效性和准确性。始终保持友好、鼓励的语气，根据用户的反馈灵活调整你的建议，帮助用户保持动力并实现他们的目标。

请直接以连贯的自然语言回答，不要使用任何如"目标设定："、"回答："等格式化的标签，就像与人面对面交流一样。`

const memoryTimeLayout = "2006-01-02 15:04"

// Assemble folds memory recall, user preferences, the planner's action
// augmentation and the turn goal into the base persona, in that fixed
// order. Empty sections are omitted entirely.
func Assemble(persona string, memories []model.Memory, prefs model.UserPreferences, augmentation, goal string) string {
	var b strings.Builder
	b.WriteString(persona)

	if len(memories) > 0 {
		b.WriteString("\n\n=== 相关记忆 ===\n")
		for i, m := range memories {
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, m.Timestamp.Local().Format(memoryTimeLayout), m.Content)
		}
		b.WriteString("=== 记忆结束 ===")
	}

	if lines := preferenceLines(prefs); len(lines) > 0 {
		b.WriteString("\n\n=== 用户偏好 ===\n")
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("=== 偏好结束 ===")
	}

	b.WriteString(augmentation)

	b.WriteString("\n\n=== 核心目标 ===\n")
	b.WriteString(goal)
	b.WriteString("\n请在回答中始终围绕这一核心目标，保持与其一致。")

	return b.String()
}

// preferenceLines renders set preferences as human-readable lines.
// Extra keys are emitted sorted so the output stays deterministic.
func preferenceLines(prefs model.UserPreferences) []string {
	var lines []string
	switch prefs.PricePreference {
	case model.PriceAffordable:
		lines = append(lines, "- 价格偏好: 经济实惠")
	case model.PriceHighEnd:
		lines = append(lines, "- 价格偏好: 高端品质")
	}
	if len(prefs.FoodAvoid) > 0 {
		lines = append(lines, "- 忌口食物: "+strings.Join(prefs.FoodAvoid, ", "))
	}
	if len(prefs.Extra) > 0 {
		keys := make([]string, 0, len(prefs.Extra))
		for k := range prefs.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("- %s: %s", k, prefs.Extra[k]))
		}
	}
	return lines
}
