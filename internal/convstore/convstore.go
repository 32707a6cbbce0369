// Package convstore defines the durable conversation store contract.
// Implementations live under internal/convstore/<driver>/ (postgres,
// sqlite). The in-process fallback is not a driver; it belongs to the
// conversation repository.
package convstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/chatforge/chatforge/internal/model"
)

// Store exposes the persistence operations the conversation repository
// requires from a durable backend.
type Store interface {
	Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	AppendMessage(ctx context.Context, id string, m model.Message) error
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]model.ConversationSummary, error)

	// ValidID reports whether id is syntactically a native identifier of
	// this backend. Foreign-shaped ids are routed to the fallback store
	// without touching the backend.
	ValidID(id string) bool

	// Ping verifies connectivity; the repository's connection state
	// machine is driven by its outcome.
	Ping(ctx context.Context) error
}

// ValidUUID is the native id check shared by the SQL drivers, which
// both key conversations by UUID.
func ValidUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
