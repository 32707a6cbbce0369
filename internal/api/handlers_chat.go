package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatforge/chatforge/internal/api/respond"
	"github.com/chatforge/chatforge/internal/chat"
	"github.com/chatforge/chatforge/internal/conversation"
	"github.com/chatforge/chatforge/internal/memory"
	"github.com/chatforge/chatforge/internal/model"
	"github.com/chatforge/chatforge/internal/oracle"
)

// chatRequest is the single entry-point body. The action field selects
// the operation; absent means a chat turn.
type chatRequest struct {
	Action    string `json:"action,omitempty"`
	Message   string `json:"message,omitempty"`
	ChatID    string `json:"chatId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UseSearch bool   `json:"useSearch,omitempty"`
	Content   string `json:"content,omitempty"`
	Title     string `json:"title,omitempty"`
	MemoryID  string `json:"memoryId,omitempty"`
	Type      string `json:"type,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// ChatHandler serves the action-dispatched /api/chat endpoint.
type ChatHandler struct {
	turns         *chat.Service
	repo          *conversation.Repository
	memories      *memory.Store
	defaultUserID string
	log           zerolog.Logger
}

// NewChatHandler creates the /api/chat handler.
func NewChatHandler(turns *chat.Service, repo *conversation.Repository, memories *memory.Store, defaultUserID string, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{turns: turns, repo: repo, memories: memories, defaultUserID: defaultUserID, log: log}
}

// Handle dispatches POST /api/chat on the request's action field.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		req.UserID = h.defaultUserID
	}

	switch req.Action {
	case "", "chat":
		h.handleChat(w, r, req)
	case "getHistory":
		h.handleGetHistory(w, r, req)
	case "getConversation":
		h.handleGetConversation(w, r, req)
	case "saveAiMessage":
		h.handleSaveAIMessage(w, r, req)
	case "deleteSession":
		h.handleDeleteSession(w, r, req)
	case "renameSession":
		h.handleRenameSession(w, r, req)
	case "feedback":
		h.handleFeedback(w, r, req)
	default:
		respond.WriteBadRequest(w, "unknown action: "+req.Action)
	}
}

// handleChat runs one streaming chat turn. The upstream body is
// forwarded chunk by chunk; persistence happens inside the turn's
// stream once the upstream completes.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request, req chatRequest) {
	if req.Message == "" {
		respond.WriteBadRequest(w, "message is required")
		return
	}

	turn, err := h.turns.RunTurn(r.Context(), chat.TurnRequest{
		Message:   req.Message,
		UserID:    req.UserID,
		ChatID:    req.ChatID,
		UseSearch: req.UseSearch,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("chat turn failed")
		details := err.Error()
		var ue *oracle.UpstreamError
		if errors.As(err, &ue) {
			details = ue.Body
		}
		respond.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "completion failed",
			"details": details,
		})
		return
	}
	defer func() { _ = turn.Body.Close() }()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("x-chat-id", turn.ConversationID)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, rerr := turn.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				h.log.Debug().Err(werr).Msg("client went away mid-stream")
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			return
		}
	}
}

func (h *ChatHandler) handleGetHistory(w http.ResponseWriter, r *http.Request, req chatRequest) {
	summaries := h.repo.ListByUser(r.Context(), req.UserID)
	if summaries == nil {
		summaries = []model.ConversationSummary{}
	}
	respond.WriteData(w, summaries)
}

func (h *ChatHandler) handleGetConversation(w http.ResponseWriter, r *http.Request, req chatRequest) {
	if req.ChatID == "" {
		respond.WriteBadRequest(w, "chatId is required")
		return
	}
	conv, err := h.repo.FindByID(r.Context(), req.ChatID)
	if err != nil {
		respond.WriteNotFound(w, "conversation not found")
		return
	}
	respond.WriteData(w, conv)
}

func (h *ChatHandler) handleSaveAIMessage(w http.ResponseWriter, r *http.Request, req chatRequest) {
	if req.ChatID == "" || req.Content == "" {
		respond.WriteBadRequest(w, "chatId and content are required")
		return
	}
	err := h.repo.AppendMessage(r.Context(), req.ChatID, model.Message{
		Role:      model.RoleAssistant,
		Content:   req.Content,
		Timestamp: time.Now(),
	})
	if err != nil {
		respond.WriteNotFound(w, "conversation not found")
		return
	}
	respond.WriteMsg(w, "Saved")
}

func (h *ChatHandler) handleDeleteSession(w http.ResponseWriter, r *http.Request, req chatRequest) {
	if req.ChatID == "" {
		respond.WriteBadRequest(w, "chatId is required")
		return
	}
	if err := h.repo.Delete(r.Context(), req.ChatID); err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteMsg(w, "Deleted")
}

func (h *ChatHandler) handleRenameSession(w http.ResponseWriter, r *http.Request, req chatRequest) {
	if req.ChatID == "" || req.Title == "" {
		respond.WriteBadRequest(w, "chatId and title are required")
		return
	}
	if err := h.repo.Rename(r.Context(), req.ChatID, req.Title); err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteMsg(w, "Renamed")
}

func (h *ChatHandler) handleFeedback(w http.ResponseWriter, r *http.Request, req chatRequest) {
	fbType := model.FeedbackType(req.Type)
	if req.MemoryID == "" || !fbType.Valid() {
		respond.WriteBadRequest(w, "memoryId and a valid type are required")
		return
	}
	err := h.memories.UpdateFeedback(req.MemoryID, model.Feedback{
		Type:      fbType,
		Comment:   req.Comment,
		Timestamp: time.Now(),
	})
	if err != nil {
		respond.WriteNotFound(w, "memory not found")
		return
	}
	respond.WriteMsg(w, "Feedback recorded")
}
