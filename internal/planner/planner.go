// Package planner decides which response-shaping actions a turn needs.
// It consults the completion oracle with a fixed instruction and falls
// back to a deterministic default whenever the oracle misbehaves, so
// planning can never fail a turn.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chatforge/chatforge/internal/model"
)

// decisionInstruction is the fixed system prompt for the decision call.
// The oracle must answer with a bare JSON object matching
// model.DecisionResult.
const decisionInstruction = `你是一个智能助手的决策引擎。分析用户消息，决定回复前需要执行哪些辅助动作。

可用动作类型：
- SEARCH：用户询问实时信息（新闻、天气、价格）或专业/时效性知识时使用
- PLAN：用户提出目标设定或计划制定请求时使用
- RETRIEVE_MEMORY：用户询问与个人历史、过往对话相关的内容时使用
- EXECUTE：用户要求执行具体任务时使用
- ANALYZE：用户需要总结、分析或深入解读时使用

多步骤任务可以组合多个动作。priority 取 1 到 5，数字越大越优先。

只输出一个 JSON 对象，不要任何其他文字，格式如下：
{"actions":[{"type":"SEARCH","priority":3,"reason":"..."}],"goal":"..."}`

// Prompt blocks appended by Apply, one per action type. Only SEARCH
// carries live material; the rest are instructional guidance.
const (
	blockSearchHeader = "\n\n联网搜索资料:\n"
	blockPlan         = "\n\n目标规划指引: 用户希望设定目标或制定计划。请给出清晰可行的目标，包含明确的时间框架和可衡量的标准，并将大目标拆解为可执行的小步骤。"
	blockRetrieve     = "\n\n记忆参考指引: 用户的问题与过往对话相关。请结合上文提供的相关记忆作答，保持与历史信息一致，不要编造用户没有说过的内容。"
	blockExecute      = "\n\n任务执行指引: 用户希望完成一项具体任务。请给出直接可操作的步骤或结果，避免空泛的建议。"
	blockAnalyze      = "\n\n分析指引: 用户需要总结或分析。请先给出结论，再列出支撑要点，保持简洁有条理。"
)

// Searcher performs a live web search; failures surface as "".
type Searcher interface {
	Search(ctx context.Context, query string) string
}

// Completer is the non-streaming oracle call the planner consults.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Planner turns a raw message into a ranked set of response-shaping
// actions and applies them to a prompt.
type Planner struct {
	oracle   Completer
	searcher Searcher
	log      zerolog.Logger
}

// New creates a Planner.
func New(oracle Completer, searcher Searcher, log zerolog.Logger) *Planner {
	return &Planner{oracle: oracle, searcher: searcher, log: log}
}

// defaultDecision is the fixed fallback used whenever the oracle call
// or its output is unusable.
func defaultDecision(message string) model.DecisionResult {
	return model.DecisionResult{
		Actions: []model.Action{
			{Type: model.ActionSearch, Priority: 3, Reason: "默认检索补充信息"},
			{Type: model.ActionAnalyze, Priority: 5, Reason: "默认分析用户意图"},
		},
		Goal: message,
	}
}

// Plan asks the oracle for a decision. Any transport failure or
// non-conforming answer yields the fixed default; Plan never errors.
func (p *Planner) Plan(ctx context.Context, message, userID string) model.DecisionResult {
	raw, err := p.oracle.Complete(ctx, decisionInstruction, message)
	if err != nil {
		p.log.Warn().Err(err).Str("user_id", userID).Msg("decision call failed, using default plan")
		return defaultDecision(message)
	}

	decision, err := parseDecision(raw)
	if err != nil {
		p.log.Warn().Err(err).Str("user_id", userID).Msg("decision response unusable, using default plan")
		return defaultDecision(message)
	}
	return decision
}

// parseDecision strictly validates the oracle's answer against the
// DecisionResult shape. A code-fenced JSON object is tolerated; any
// other deviation is an error.
func parseDecision(raw string) (model.DecisionResult, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))

	var out model.DecisionResult
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return model.DecisionResult{}, fmt.Errorf("decode decision: %w", err)
	}
	if len(out.Actions) == 0 {
		return model.DecisionResult{}, fmt.Errorf("decision has no actions")
	}
	for _, a := range out.Actions {
		if !a.Type.Valid() {
			return model.DecisionResult{}, fmt.Errorf("unknown action type %q", a.Type)
		}
		if a.Priority < 1 || a.Priority > 5 {
			return model.DecisionResult{}, fmt.Errorf("priority %d out of range", a.Priority)
		}
	}
	return out, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Apply processes actions in descending priority order (ties keep the
// planner's original order) and appends each action's prompt block.
// SEARCH is the only action with an external side effect.
func (p *Planner) Apply(ctx context.Context, actions []model.Action, message, prompt string) string {
	ordered := append([]model.Action(nil), actions...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority > ordered[j].Priority })

	var b strings.Builder
	b.WriteString(prompt)
	for _, a := range ordered {
		switch a.Type {
		case model.ActionSearch:
			results := p.searcher.Search(ctx, message)
			if results != "" {
				b.WriteString(blockSearchHeader)
				b.WriteString(results)
			}
		case model.ActionPlan:
			b.WriteString(blockPlan)
		case model.ActionRetrieveMemory:
			b.WriteString(blockRetrieve)
		case model.ActionExecute:
			b.WriteString(blockExecute)
		case model.ActionAnalyze:
			b.WriteString(blockAnalyze)
		}
	}
	return b.String()
}
