package conversation

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/chatforge/chatforge/internal/model"
)

// fallbackStore is the in-process, non-durable conversation store used
// when the durable backend is unavailable or an id is not in its native
// format. Ids are a plain integer counter, deliberately not shaped like
// the durable backend's UUIDs.
type fallbackStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	nextID        int
}

func newFallbackStore() *fallbackStore {
	return &fallbackStore{
		conversations: make(map[string]*model.Conversation),
		nextID:        1,
	}
}

// create stores a new conversation. When id is empty the store assigns
// the next counter id; otherwise the caller-provided id is kept (stale
// client recovery path).
func (f *fallbackStore) create(id, userID, title string, first model.Message) *model.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id == "" {
		id = strconv.Itoa(f.nextID)
		f.nextID++
	}
	now := time.Now()
	c := &model.Conversation{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Messages:  []model.Message{first},
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.conversations[id] = c
	return copyConversation(c)
}

func (f *fallbackStore) find(id string) (*model.Conversation, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, ok := f.conversations[id]
	if !ok {
		return nil, false
	}
	return copyConversation(c), true
}

func (f *fallbackStore) appendMessage(id string, m model.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.conversations[id]
	if !ok {
		return false
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	c.Messages = append(c.Messages, m)
	c.UpdatedAt = time.Now()
	return true
}

func (f *fallbackStore) rename(id, title string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.conversations[id]
	if !ok {
		return false
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return true
}

func (f *fallbackStore) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conversations, id)
}

func (f *fallbackStore) listByUser(userID string) []model.ConversationSummary {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []model.ConversationSummary
	for _, c := range f.conversations {
		if c.UserID != userID {
			continue
		}
		out = append(out, model.ConversationSummary{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func copyConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Messages = append([]model.Message(nil), c.Messages...)
	return &cp
}
