// Package memory implements the per-user memory index: tag-based
// storage, feedback-weighted retrieval ranking and the derived
// user-preference aggregate.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chatforge/chatforge/internal/model"
	"github.com/chatforge/chatforge/internal/tags"
)

// Feedback weights applied to retrieval scores.
const (
	weightPositive = 1.5
	weightNegative = 0.5
	weightNeutral  = 1.0
)

// Store indexes memories and derives user preferences. It is an owned
// instance, injected into the orchestrator; concurrent turns for the
// same user interleave last-write-wins (accepted, single-client model).
type Store struct {
	mu       sync.RWMutex
	memories map[string]*model.Memory
	prefs    map[string]*model.UserPreferences
	log      zerolog.Logger
}

// NewStore creates an empty memory store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		memories: make(map[string]*model.Memory),
		prefs:    make(map[string]*model.UserPreferences),
		log:      log,
	}
}

// Store inserts or overwrites a memory by id and re-derives the owning
// user's preferences.
func (s *Store) Store(mem model.Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := mem
	cp.Tags = append([]string(nil), mem.Tags...)
	s.memories[cp.ID] = &cp
	s.derivePreferencesLocked(cp.UserID, &cp)

	s.log.Debug().Str("memory_id", cp.ID).Strs("tags", cp.Tags).Msg("memory stored")
}

// scored pairs a memory with its transient retrieval score; the score
// never escapes this package.
type scored struct {
	mem   *model.Memory
	score float64
}

// RetrieveRelevant returns up to limit memories of userID ranked by
// tag-overlap score weighted by feedback, ties broken by recency.
// Memories of other users are never returned.
func (s *Store) RetrieveRelevant(query, userID string, limit int) []model.Memory {
	queryTags := tags.Generate(query, "")

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []scored
	for _, mem := range s.memories {
		if mem.UserID != userID {
			continue
		}
		matches := 0
		for _, tag := range mem.Tags {
			if matchesAny(tag, queryTags) {
				matches++
			}
		}
		score := float64(matches) * feedbackWeight(mem.Feedback)
		if score > 0 {
			candidates = append(candidates, scored{mem: mem, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].mem.Timestamp.After(candidates[j].mem.Timestamp)
	})

	if limit >= 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]model.Memory, 0, len(candidates))
	for _, c := range candidates {
		cp := *c.mem
		cp.Tags = append([]string(nil), c.mem.Tags...)
		out = append(out, cp)
	}
	return out
}

// matchesAny reports whether tag overlaps any query tag under the
// bidirectional substring rule.
func matchesAny(tag string, queryTags []string) bool {
	for _, q := range queryTags {
		if strings.Contains(tag, q) || strings.Contains(q, tag) {
			return true
		}
	}
	return false
}

func feedbackWeight(fb *model.Feedback) float64 {
	if fb == nil {
		return weightNeutral
	}
	switch fb.Type {
	case model.FeedbackPositive:
		return weightPositive
	case model.FeedbackNegative:
		return weightNegative
	default:
		return weightNeutral
	}
}

// UpdateFeedback overwrites a memory's feedback (last-write-wins) and
// re-derives the owner's preferences. Unknown ids mutate nothing and
// report model.ErrNotFound.
func (s *Store) UpdateFeedback(memoryID string, fb model.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mem, ok := s.memories[memoryID]
	if !ok {
		return model.ErrNotFound
	}
	cp := fb
	mem.Feedback = &cp
	s.derivePreferencesLocked(mem.UserID, mem)

	s.log.Debug().Str("memory_id", memoryID).Str("type", string(fb.Type)).Msg("memory feedback updated")
	return nil
}

// Preferences returns the current derived aggregate for userID, or the
// zero value if none has been derived yet.
func (s *Store) Preferences(userID string) model.UserPreferences {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prefs[userID]
	if !ok {
		return model.UserPreferences{}
	}
	cp := *p
	cp.FoodAvoid = append([]string(nil), p.FoodAvoid...)
	return cp
}
