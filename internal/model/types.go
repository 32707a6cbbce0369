package model

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is immutable once appended; ordering is append order within a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Thinking  bool      `json:"thinking,omitempty"`
}

// Conversation groups an ordered message sequence under a user.
// The ID is assigned once at creation; UpdatedAt is monotonically
// non-decreasing and refreshed on every append or rename.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationSummary is a listing row, sorted by UpdatedAt descending.
type ConversationSummary struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FeedbackType classifies user feedback on a memory.
type FeedbackType string

const (
	FeedbackPositive FeedbackType = "positive"
	FeedbackNegative FeedbackType = "negative"
	FeedbackNeutral  FeedbackType = "neutral"
)

// Valid reports whether t is one of the known feedback types.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackPositive, FeedbackNegative, FeedbackNeutral:
		return true
	}
	return false
}

// Feedback is the most recently applied feedback on a memory (last-write-wins).
type Feedback struct {
	Type      FeedbackType `json:"type"`
	Comment   string       `json:"comment,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Memory is one indexed piece of prior conversation content.
// Tags are a deduplicated set; insertion order is irrelevant.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
	Context   string    `json:"context"`
	Feedback  *Feedback `json:"feedback,omitempty"`
}

// PricePreference is a derived spending-level preference.
type PricePreference string

const (
	PriceAffordable PricePreference = "affordable"
	PriceHighEnd    PricePreference = "high-end"
)

// UserPreferences is the derived per-user aggregate. It springs into
// existence lazily and is recomputed on every memory store/feedback event.
type UserPreferences struct {
	PricePreference PricePreference   `json:"pricePreference,omitempty"`
	FoodAvoid       []string          `json:"foodAvoid,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// IsZero reports whether no preference has been derived yet.
func (p UserPreferences) IsZero() bool {
	return p.PricePreference == "" && len(p.FoodAvoid) == 0 && len(p.Extra) == 0
}

// ActionType is the closed set of response-shaping behaviors a planner
// may choose for a turn.
type ActionType string

const (
	ActionSearch         ActionType = "SEARCH"
	ActionPlan           ActionType = "PLAN"
	ActionRetrieveMemory ActionType = "RETRIEVE_MEMORY"
	ActionExecute        ActionType = "EXECUTE"
	ActionAnalyze        ActionType = "ANALYZE"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionSearch, ActionPlan, ActionRetrieveMemory, ActionExecute, ActionAnalyze:
		return true
	}
	return false
}

// Action is one planned response-shaping behavior.
type Action struct {
	Type     ActionType `json:"type"`
	Priority int        `json:"priority"`
	Reason   string     `json:"reason,omitempty"`
}

// DecisionResult is the planner output for one turn; it is never persisted.
type DecisionResult struct {
	Actions []Action `json:"actions"`
	Goal    string   `json:"goal"`
}
