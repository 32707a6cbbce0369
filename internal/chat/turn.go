// Package chat drives a single chat turn end to end: connection check,
// conversation resolution, memory recall, action planning, prompt
// assembly, upstream streaming and post-hoc persistence.
package chat

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatforge/chatforge/internal/conversation"
	"github.com/chatforge/chatforge/internal/memory"
	"github.com/chatforge/chatforge/internal/model"
	"github.com/chatforge/chatforge/internal/oracle"
	"github.com/chatforge/chatforge/internal/prompt"
	"github.com/chatforge/chatforge/internal/tags"
)

const (
	// titleRuneLimit caps conversation titles; messages at or under the
	// limit are used verbatim, longer ones are summarized.
	titleRuneLimit = 10

	titleInstruction = "用不超过10个字概括用户的这句话，作为会话标题。只输出标题本身，不要标点或引号。"

	memoriesPerTurn = 3

	contextUserQuery  = "user_query"
	contextAIResponse = "ai_response"
)

// Oracle is the completion-oracle surface the orchestrator needs.
type Oracle interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Stream(ctx context.Context, system, user string) (io.ReadCloser, error)
}

// Planner decides and applies response-shaping actions.
type Planner interface {
	Plan(ctx context.Context, message, userID string) model.DecisionResult
	Apply(ctx context.Context, actions []model.Action, message, promptText string) string
}

// Service orchestrates chat turns.
type Service struct {
	repo     *conversation.Repository
	memories *memory.Store
	planner  Planner
	oracle   Oracle
	persona  string
	log      zerolog.Logger
}

// NewService wires a turn orchestrator. An empty persona selects the
// default coach persona.
func NewService(repo *conversation.Repository, memories *memory.Store, planner Planner, oracle Oracle, persona string, log zerolog.Logger) *Service {
	if persona == "" {
		persona = prompt.DefaultPersona
	}
	return &Service{repo: repo, memories: memories, planner: planner, oracle: oracle, persona: persona, log: log}
}

// TurnRequest is one chat turn's input.
type TurnRequest struct {
	Message   string
	UserID    string
	ChatID    string
	UseSearch bool
}

// Turn is a running chat turn. Body forwards the upstream stream's raw
// bytes unmodified; on clean end-of-stream the accumulated completion
// is persisted as an assistant message and an ai_response memory.
// Closing Body before end-of-stream discards the partial buffer.
type Turn struct {
	ConversationID string
	Body           io.ReadCloser
}

// RunTurn executes the orchestration sequence for one turn. Only the
// upstream completion call can fail it; every other collaborator
// degrades internally.
func (s *Service) RunTurn(ctx context.Context, req TurnRequest) (*Turn, error) {
	connected := s.repo.EnsureConnected(ctx)
	s.log.Debug().Bool("durable", connected).Str("user_id", req.UserID).Msg("turn started")

	conv := s.resolveConversation(ctx, req)

	s.memories.Store(model.Memory{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Content:   req.Message,
		Timestamp: time.Now(),
		Tags:      tags.Generate(req.Message, contextUserQuery),
		Context:   contextUserQuery,
	})
	relevant := s.memories.RetrieveRelevant(req.Message, req.UserID, memoriesPerTurn)
	prefs := s.memories.Preferences(req.UserID)

	decision := s.planner.Plan(ctx, req.Message, req.UserID)
	actions := decision.Actions
	if req.UseSearch && !hasSearchAction(actions) {
		actions = append([]model.Action{{Type: model.ActionSearch, Priority: 3, Reason: "用户请求联网搜索"}}, actions...)
	}
	augmentation := s.planner.Apply(ctx, actions, req.Message, "")

	systemPrompt := prompt.Assemble(s.persona, relevant, prefs, augmentation, decision.Goal)

	upstream, err := s.oracle.Stream(ctx, systemPrompt, req.Message)
	if err != nil {
		return nil, err
	}

	// Persistence must survive the request context ending right after
	// the final chunk is forwarded.
	persistCtx := context.WithoutCancel(ctx)
	body := &turnStream{
		upstream: upstream,
		onComplete: func(fullText string) {
			s.persistCompletion(persistCtx, conv, req.UserID, fullText)
		},
	}
	return &Turn{ConversationID: conv.ID, Body: body}, nil
}

// resolveConversation finds or creates the turn's conversation and
// appends the user message to it.
func (s *Service) resolveConversation(ctx context.Context, req TurnRequest) *model.Conversation {
	userMsg := model.Message{Role: model.RoleUser, Content: req.Message, Timestamp: time.Now()}

	if req.ChatID != "" {
		conv, err := s.repo.FindByID(ctx, req.ChatID)
		if err != nil {
			// Stale or foreign id: recreate under the supplied id so the
			// client keeps a working handle.
			return s.repo.CreateWithID(req.ChatID, req.UserID, s.titleFor(ctx, req.Message), userMsg)
		}
		if err := s.repo.AppendMessage(ctx, conv.ID, userMsg); err != nil {
			s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("user message append failed")
		}
		return conv
	}
	return s.repo.Create(ctx, req.UserID, s.titleFor(ctx, req.Message), userMsg)
}

// titleFor produces the conversation title: the message verbatim when
// short enough, otherwise an oracle summary capped at the limit, with
// the first runes of the message as the failure fallback.
func (s *Service) titleFor(ctx context.Context, message string) string {
	if utf8.RuneCountInString(message) <= titleRuneLimit {
		return message
	}
	summary, err := s.oracle.Complete(ctx, titleInstruction, message)
	if err != nil {
		s.log.Warn().Err(err).Msg("title summarization failed, truncating message")
		return truncateRunes(message, titleRuneLimit)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return truncateRunes(message, titleRuneLimit)
	}
	return truncateRunes(summary, titleRuneLimit)
}

func (s *Service) persistCompletion(ctx context.Context, conv *model.Conversation, userID, fullText string) {
	if err := s.repo.AppendMessage(ctx, conv.ID, model.Message{
		Role:      model.RoleAssistant,
		Content:   fullText,
		Timestamp: time.Now(),
	}); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("assistant message persistence failed")
	}
	s.memories.Store(model.Memory{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   fullText,
		Timestamp: time.Now(),
		Tags:      tags.Generate(fullText, contextAIResponse),
		Context:   contextAIResponse,
	})
	s.log.Debug().Str("conversation_id", conv.ID).Int("chars", len(fullText)).Msg("completion persisted")
}

func hasSearchAction(actions []model.Action) bool {
	for _, a := range actions {
		if a.Type == model.ActionSearch {
			return true
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// turnStream forwards upstream bytes to the reader while feeding a copy
// into the SSE delta accumulator. The completion callback fires exactly
// once, on clean end-of-stream; an early Close discards the partial
// buffer because partial completions are not meaningful memories.
type turnStream struct {
	upstream   io.ReadCloser
	acc        oracle.DeltaAccumulator
	onComplete func(fullText string)
	completed  bool
}

func (t *turnStream) Read(p []byte) (int, error) {
	n, err := t.upstream.Read(p)
	if n > 0 {
		_, _ = t.acc.Write(p[:n])
	}
	if err == io.EOF && !t.completed {
		t.completed = true
		t.acc.Flush()
		if text := t.acc.Text(); text != "" {
			t.onComplete(text)
		}
	}
	return n, err
}

func (t *turnStream) Close() error {
	return t.upstream.Close()
}
