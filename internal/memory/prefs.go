package memory

import (
	"strings"

	"github.com/chatforge/chatforge/internal/model"
)

// Preference cues scanned in memory content. Both price complaints and
// economy requests deliberately map to "affordable"; requirements keep
// the two cases collapsed.
var (
	cuesPriceHigh   = []string{"贵", "太贵", "价格高"}
	cuesPriceLow    = []string{"便宜", "性价比", "经济"}
	cuesPremium     = []string{"高端", "豪华", "品质"}
	cuesAvoidance   = []string{"过敏", "不能吃", "避免"}
	foodCueSeafood  = "海鲜"
	foodTermSeafood = "seafood"
)

// derivePreferencesLocked updates userID's aggregate from one memory's
// content. Last-write-wins per preference key. Caller holds s.mu.
func (s *Store) derivePreferencesLocked(userID string, mem *model.Memory) {
	p, ok := s.prefs[userID]
	if !ok {
		p = &model.UserPreferences{}
		s.prefs[userID] = p
	}

	content := strings.ToLower(mem.Content)

	switch {
	case containsAny(content, cuesPriceHigh):
		p.PricePreference = model.PriceAffordable
	case containsAny(content, cuesPriceLow):
		p.PricePreference = model.PriceAffordable
	case containsAny(content, cuesPremium):
		p.PricePreference = model.PriceHighEnd
	}

	if strings.Contains(content, foodCueSeafood) && containsAny(content, cuesAvoidance) {
		if !containsString(p.FoodAvoid, foodTermSeafood) {
			p.FoodAvoid = append(p.FoodAvoid, foodTermSeafood)
		}
	}

	s.log.Debug().Str("user_id", userID).Interface("preferences", p).Msg("user preferences updated")
}

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}
