// Package api wires the HTTP surface: one action-dispatched chat
// endpoint plus a health probe.
package api

import (
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/chatforge/chatforge/internal/api/recovery"
	"github.com/chatforge/chatforge/internal/chat"
	"github.com/chatforge/chatforge/internal/conversation"
	"github.com/chatforge/chatforge/internal/memory"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(turns *chat.Service, repo *conversation.Repository, memories *memory.Store, defaultUserID string, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(recovery.Middleware)

	chatHandler := NewChatHandler(turns, repo, memories, defaultUserID, log)
	healthHandler := NewHealthHandler(repo)

	router.HandleFunc("/api/chat", chatHandler.Handle).Methods("POST")
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return router
}
