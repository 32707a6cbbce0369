// Package conversation provides the dual-backend conversation
// repository: a durable store with transparent failover to an
// in-process fallback, so a turn can always proceed degraded.
package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatforge/chatforge/internal/convstore"
	"github.com/chatforge/chatforge/internal/model"
)

// connState is the process-wide durable-backend connection state.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// connectTimeout bounds a single durable connection attempt, mirroring
// the 5s server-selection window of the original deployment.
const connectTimeout = 5 * time.Second

// Repository stores conversations durably when possible and in the
// process-local fallback otherwise. The fallback is not a cache or a
// write-ahead log: entities are owned by whichever backend created them
// and are never reconciled across backends.
type Repository struct {
	durable convstore.Store // nil when no durable backend is configured
	fb      *fallbackStore
	log     zerolog.Logger

	mu      sync.Mutex
	state   connState
	attempt chan struct{} // closed when the in-flight attempt finishes
}

// NewRepository creates a repository over an optional durable store.
func NewRepository(durable convstore.Store, log zerolog.Logger) *Repository {
	return &Repository{
		durable: durable,
		fb:      newFallbackStore(),
		log:     log,
	}
}

// EnsureConnected reports whether the durable backend is usable. It
// never returns an error: a failed attempt leaves the repository
// degraded on the fallback store. Concurrent callers coalesce onto a
// single in-flight attempt and all observe its outcome.
func (r *Repository) EnsureConnected(ctx context.Context) bool {
	if r.durable == nil {
		return false
	}

	r.mu.Lock()
	switch r.state {
	case stateConnected:
		r.mu.Unlock()
		return true
	case stateConnecting:
		ch := r.attempt
		r.mu.Unlock()
		return r.awaitAttempt(ctx, ch)
	default:
		ch := make(chan struct{})
		r.attempt = ch
		r.state = stateConnecting
		r.mu.Unlock()
		go r.connect(ch)
		return r.awaitAttempt(ctx, ch)
	}
}

func (r *Repository) awaitAttempt(ctx context.Context, ch <-chan struct{}) bool {
	select {
	case <-ch:
	case <-ctx.Done():
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateConnected
}

func (r *Repository) connect(done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	err := r.durable.Ping(ctx)

	r.mu.Lock()
	if err != nil {
		r.state = stateDisconnected
	} else {
		r.state = stateConnected
	}
	r.mu.Unlock()

	if err != nil {
		r.log.Warn().Err(err).Msg("durable store unreachable, using fallback store")
		return
	}
	r.log.Info().Msg("durable store connected")
}

// Connected reports the current state without triggering an attempt.
func (r *Repository) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateConnected
}

// durableUsable reports whether an operation on id may touch the
// durable backend: it must be connected and the id native-shaped.
func (r *Repository) durableUsable(id string) bool {
	return r.durable != nil && r.Connected() && r.durable.ValidID(id)
}

// Create stores a new conversation, durable-first when connected,
// falling back on any failure. It never returns nil.
func (r *Repository) Create(ctx context.Context, userID, title string, first model.Message) *model.Conversation {
	if r.durable != nil && r.Connected() {
		c, err := r.durable.Create(ctx, &model.Conversation{
			UserID:   userID,
			Title:    title,
			Messages: []model.Message{first},
		})
		if err == nil {
			return c
		}
		r.log.Warn().Err(err).Msg("durable create failed, using fallback store")
	}
	return r.fb.create("", userID, title, first)
}

// CreateWithID stores a new conversation in the fallback store under a
// caller-supplied id. This is the recovery path for a client holding a
// stale or foreign id against a cleared store.
func (r *Repository) CreateWithID(id, userID, title string, first model.Message) *model.Conversation {
	r.log.Warn().Str("conversation_id", id).Msg("conversation not found, recreating under supplied id")
	return r.fb.create(id, userID, title, first)
}

// FindByID looks up a conversation, trying the durable backend only for
// native-shaped ids while connected, then always the fallback store.
func (r *Repository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	if r.durableUsable(id) {
		c, err := r.durable.FindByID(ctx, id)
		if err == nil {
			return c, nil
		}
		if !errorsIsNotFound(err) {
			r.log.Warn().Err(err).Str("conversation_id", id).Msg("durable lookup failed")
		}
	}
	if c, ok := r.fb.find(id); ok {
		return c, nil
	}
	return nil, model.ErrNotFound
}

// AppendMessage appends to whichever backends hold the conversation,
// best-effort on both. It reports model.ErrNotFound only when neither
// store was mutated.
func (r *Repository) AppendMessage(ctx context.Context, id string, m model.Message) error {
	appended := false
	if r.durableUsable(id) {
		if err := r.durable.AppendMessage(ctx, id, m); err != nil {
			if !errorsIsNotFound(err) {
				r.log.Warn().Err(err).Str("conversation_id", id).Msg("durable append failed")
			}
		} else {
			appended = true
		}
	}
	if r.fb.appendMessage(id, m) {
		appended = true
	}
	if !appended {
		return model.ErrNotFound
	}
	return nil
}

// Rename retitles the conversation on both backends, best-effort.
func (r *Repository) Rename(ctx context.Context, id, title string) error {
	if r.durableUsable(id) {
		if err := r.durable.Rename(ctx, id, title); err != nil && !errorsIsNotFound(err) {
			r.log.Warn().Err(err).Str("conversation_id", id).Msg("durable rename failed")
		}
	}
	r.fb.rename(id, title)
	return nil
}

// Delete removes the conversation from both backends, best-effort.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r.durableUsable(id) {
		if err := r.durable.Delete(ctx, id); err != nil {
			r.log.Warn().Err(err).Str("conversation_id", id).Msg("durable delete failed")
		}
	}
	r.fb.delete(id)
	return nil
}

// ListByUser lists conversation summaries sorted by updatedAt
// descending, preferring the durable backend's listing when connected.
func (r *Repository) ListByUser(ctx context.Context, userID string) []model.ConversationSummary {
	if r.durable != nil && r.Connected() {
		list, err := r.durable.ListByUser(ctx, userID)
		if err == nil {
			return list
		}
		r.log.Warn().Err(err).Msg("durable list failed, using fallback store")
	}
	return r.fb.listByUser(userID)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
