package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/conversation"
	"github.com/chatforge/chatforge/internal/memory"
	"github.com/chatforge/chatforge/internal/model"
)

type fakeOracle struct {
	completeReply string
	completeErr   error
	completeCalls int

	streamBody string
	streamErr  error
	lastSystem string
}

func (f *fakeOracle) Complete(ctx context.Context, system, user string) (string, error) {
	f.completeCalls++
	return f.completeReply, f.completeErr
}

func (f *fakeOracle) Stream(ctx context.Context, system, user string) (io.ReadCloser, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.lastSystem = system
	return io.NopCloser(strings.NewReader(f.streamBody)), nil
}

type fakePlanner struct {
	decision      model.DecisionResult
	appliedWith   []model.Action
	augmentation  string
	appliedPrompt string
}

func (f *fakePlanner) Plan(ctx context.Context, message, userID string) model.DecisionResult {
	return f.decision
}

func (f *fakePlanner) Apply(ctx context.Context, actions []model.Action, message, promptText string) string {
	f.appliedWith = actions
	f.appliedPrompt = promptText
	return f.augmentation
}

func sseBody(deltas ...string) string {
	var b strings.Builder
	for _, d := range deltas {
		b.WriteString(`data: {"choices":[{"delta":{"content":"` + d + `"}}]}` + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func newTestService(oracle *fakeOracle, planner *fakePlanner) (*Service, *conversation.Repository, *memory.Store) {
	log := zerolog.Nop()
	repo := conversation.NewRepository(nil, log)
	mems := memory.NewStore(log)
	if planner.decision.Actions == nil {
		planner.decision = model.DecisionResult{
			Actions: []model.Action{{Type: model.ActionAnalyze, Priority: 5}},
			Goal:    "g",
		}
	}
	return NewService(repo, mems, planner, oracle, "", log), repo, mems
}

func TestRunTurn_StreamsRawBytesAndPersists(t *testing.T) {
	oracle := &fakeOracle{streamBody: sseBody("你好", "，世界")}
	svc, repo, mems := newTestService(oracle, &fakePlanner{})

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: "打个招呼", UserID: "user-1"})
	require.NoError(t, err)
	require.NotEmpty(t, turn.ConversationID)

	raw, err := io.ReadAll(turn.Body)
	require.NoError(t, err)
	require.Equal(t, oracle.streamBody, string(raw), "body passes upstream bytes through unmodified")
	require.NoError(t, turn.Body.Close())

	conv, err := repo.FindByID(context.Background(), turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	require.Equal(t, model.RoleUser, conv.Messages[0].Role)
	require.Equal(t, "打个招呼", conv.Messages[0].Content)
	require.Equal(t, model.RoleAssistant, conv.Messages[1].Role)
	require.Equal(t, "你好，世界", conv.Messages[1].Content)

	recalled := mems.RetrieveRelevant("你好，世界", "user-1", 10)
	var sawResponse bool
	for _, m := range recalled {
		if m.Context == "ai_response" && m.Content == "你好，世界" {
			sawResponse = true
		}
	}
	require.True(t, sawResponse, "completion stored as ai_response memory")
}

func TestRunTurn_CloseBeforeEOFDiscardsPartial(t *testing.T) {
	oracle := &fakeOracle{streamBody: sseBody("部分内容")}
	svc, repo, _ := newTestService(oracle, &fakePlanner{})

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: "hi", UserID: "user-1"})
	require.NoError(t, err)

	buf := make([]byte, 8)
	_, err = turn.Body.Read(buf)
	require.NoError(t, err)
	require.NoError(t, turn.Body.Close())

	conv, err := repo.FindByID(context.Background(), turn.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1, "only the user message survives an aborted stream")
}

func TestRunTurn_ExistingConversationAppends(t *testing.T) {
	oracle := &fakeOracle{streamBody: sseBody("好的")}
	svc, repo, _ := newTestService(oracle, &fakePlanner{})

	first := repo.Create(context.Background(), "user-1", "旧会话",
		model.Message{Role: model.RoleUser, Content: "第一句"})

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: "第二句", UserID: "user-1", ChatID: first.ID})
	require.NoError(t, err)
	require.Equal(t, first.ID, turn.ConversationID)

	_, err = io.ReadAll(turn.Body)
	require.NoError(t, err)

	conv, err := repo.FindByID(context.Background(), first.ID)
	require.NoError(t, err)
	require.Equal(t, "旧会话", conv.Title, "existing title untouched")
	require.Len(t, conv.Messages, 3)
}

func TestRunTurn_UnknownChatIDRecreatedUnderSameID(t *testing.T) {
	oracle := &fakeOracle{streamBody: sseBody("ok")}
	svc, repo, _ := newTestService(oracle, &fakePlanner{})

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: "hello", UserID: "user-1", ChatID: "66f0c0ffee"})
	require.NoError(t, err)
	require.Equal(t, "66f0c0ffee", turn.ConversationID)

	conv, err := repo.FindByID(context.Background(), "66f0c0ffee")
	require.NoError(t, err)
	require.Equal(t, "hello", conv.Title)
}

func TestRunTurn_ShortMessageBecomesTitleVerbatim(t *testing.T) {
	oracle := &fakeOracle{streamBody: sseBody("ok"), completeReply: "should not be used"}
	svc, repo, _ := newTestService(oracle, &fakePlanner{})

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: "推荐一家餐厅", UserID: "user-1"})
	require.NoError(t, err)

	conv, err := repo.FindByID(context.Background(), turn.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "推荐一家餐厅", conv.Title)
	require.Zero(t, oracle.completeCalls, "short messages never hit the summarizer")
}

func TestRunTurn_LongMessageTitleSummarized(t *testing.T) {
	long := "请帮我制定一个为期三个月的马拉松训练计划，包括饮食建议"
	oracle := &fakeOracle{streamBody: sseBody("ok"), completeReply: " 马拉松训练计划 "}
	svc, repo, _ := newTestService(oracle, &fakePlanner{})

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: long, UserID: "user-1"})
	require.NoError(t, err)

	conv, err := repo.FindByID(context.Background(), turn.ConversationID)
	require.NoError(t, err)
	require.Equal(t, "马拉松训练计划", conv.Title)
}

func TestRunTurn_TitleFallbackOnSummarizerFailure(t *testing.T) {
	long := "请帮我制定一个为期三个月的马拉松训练计划"
	oracle := &fakeOracle{streamBody: sseBody("ok"), completeErr: errors.New("upstream down")}
	svc, repo, _ := newTestService(oracle, &fakePlanner{})

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: long, UserID: "user-1"})
	require.NoError(t, err)

	conv, err := repo.FindByID(context.Background(), turn.ConversationID)
	require.NoError(t, err)
	require.Equal(t, string([]rune(long)[:10]), conv.Title)
}

func TestRunTurn_UseSearchForcesSearchAction(t *testing.T) {
	planner := &fakePlanner{decision: model.DecisionResult{
		Actions: []model.Action{{Type: model.ActionAnalyze, Priority: 5}},
		Goal:    "g",
	}}
	oracle := &fakeOracle{streamBody: sseBody("ok")}
	svc, _, _ := newTestService(oracle, planner)

	_, err := svc.RunTurn(context.Background(), TurnRequest{Message: "今天的新闻", UserID: "user-1", UseSearch: true})
	require.NoError(t, err)

	require.Len(t, planner.appliedWith, 2)
	require.Equal(t, model.ActionSearch, planner.appliedWith[0].Type)
	require.Equal(t, "", planner.appliedPrompt, "augmentation builds on an empty base")
}

func TestRunTurn_UseSearchKeepsSingleSearchAction(t *testing.T) {
	planner := &fakePlanner{decision: model.DecisionResult{
		Actions: []model.Action{{Type: model.ActionSearch, Priority: 3}},
		Goal:    "g",
	}}
	oracle := &fakeOracle{streamBody: sseBody("ok")}
	svc, _, _ := newTestService(oracle, planner)

	_, err := svc.RunTurn(context.Background(), TurnRequest{Message: "新闻", UserID: "user-1", UseSearch: true})
	require.NoError(t, err)
	require.Len(t, planner.appliedWith, 1)
}

func TestRunTurn_AugmentationAndGoalReachThePrompt(t *testing.T) {
	planner := &fakePlanner{
		decision: model.DecisionResult{
			Actions: []model.Action{{Type: model.ActionAnalyze, Priority: 5}},
			Goal:    "帮用户查天气",
		},
		augmentation: "\n\n联网搜索资料:\n[1] 晴",
	}
	oracle := &fakeOracle{streamBody: sseBody("ok")}
	svc, _, _ := newTestService(oracle, planner)

	turn, err := svc.RunTurn(context.Background(), TurnRequest{Message: "北京天气", UserID: "user-1"})
	require.NoError(t, err)
	_, _ = io.ReadAll(turn.Body)

	require.Contains(t, oracle.lastSystem, "联网搜索资料:\n[1] 晴")
	require.Contains(t, oracle.lastSystem, "帮用户查天气")
}

func TestRunTurn_StreamFailurePropagates(t *testing.T) {
	oracle := &fakeOracle{streamErr: errors.New("bad gateway")}
	svc, _, _ := newTestService(oracle, &fakePlanner{})

	_, err := svc.RunTurn(context.Background(), TurnRequest{Message: "hi", UserID: "user-1"})
	require.Error(t, err)
}
