package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/rawscan"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/scorer"
)

const (
	DefaultRawBoost = 50.0
	DefaultLimit    = 150
)

// Rank boosts candidates recovered by the raw scan, orders them by score
// (ties keep corpus order) and returns at most limit of them. The input slice
// is not modified.
func Rank(candidates []scorer.Scored, raw rawscan.MatchSet, boost float64, limit int) []scorer.Scored {
	if limit <= 0 {
		limit = DefaultLimit
	}
	result := make([]scorer.Scored, len(candidates))
	copy(result, candidates)
	for i := range result {
		if raw.Has(result[i].Record.ID) {
			result[i].Score += boost
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Index < result[j].Index
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
