// Package scorer computes the additive heuristic relevance score of one
// record against one query. Each component is exported so it can be checked
// in isolation; Score is their sum.
package scorer

import (
	"math"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/match"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/terms"
)

const (
	PhraseBonus       = 100.0
	TermBonus         = 10.0
	RepeatBonus       = 5.0
	WordBonus         = 5.0
	EngagementDivisor = 10.0
	EngagementCap     = 20.0
	RecencyMax        = 2.0
	RecencyDays       = 30.0
	recencyDecayDays  = 15.0
)

// Query is a TermSet compiled once so scoring every record does not rebuild
// patterns.
type Query struct {
	Raw     string
	Terms   terms.TermSet
	phrases []*match.Pattern
	terms   []*match.Pattern
}

// Compile prepares ts for scoring.
func Compile(raw string, ts terms.TermSet) *Query {
	return &Query{
		Raw:     raw,
		Terms:   ts,
		phrases: match.CompileAll(ts.Phrases),
		terms:   match.CompileAll(ts.Terms),
	}
}

// Scored pairs a record with its score and its position in the corpus, which
// breaks ties during ranking.
type Scored struct {
	Record corpus.Record
	Score  float64
	Index  int
}

// Scorer holds the clock used for the recency bonus.
type Scorer struct {
	now func() time.Time
}

// New returns a Scorer using now for recency; nil means time.Now.
func New(now func() time.Time) *Scorer {
	if now == nil {
		now = time.Now
	}
	return &Scorer{now: now}
}

// Score returns the total, non-negative score of r for q.
func (s *Scorer) Score(r corpus.Record, q *Query) float64 {
	text := strings.ToLower(r.Text)
	return PhraseScore(text, q.phrases) +
		TermScore(text, q.terms) +
		EngagementBonus(r) +
		RecencyBonus(r.CreatedAt, s.now())
}

// ScoreAll scores every record and keeps those with a strictly positive
// total. An empty term set selects nothing.
func (s *Scorer) ScoreAll(records []corpus.Record, q *Query) []Scored {
	if q.Terms.Empty() {
		return nil
	}
	out := make([]Scored, 0, len(records)/4)
	for i, r := range records {
		if score := s.Score(r, q); score > 0 {
			out = append(out, Scored{Record: r, Score: score, Index: i})
		}
	}
	return out
}

// PhraseScore awards PhraseBonus for each phrase contained in lowered text.
func PhraseScore(lowered string, phrases []*match.Pattern) float64 {
	var score float64
	for _, p := range phrases {
		if p.Contains(lowered) {
			score += PhraseBonus
		}
	}
	return score
}

// TermScore awards, per contained term, TermBonus, RepeatBonus for every
// occurrence past the first, and WordBonus when the term also matches on word
// boundaries.
func TermScore(lowered string, patterns []*match.Pattern) float64 {
	var score float64
	for _, p := range patterns {
		n := p.Count(lowered)
		if n == 0 {
			continue
		}
		score += TermBonus
		score += RepeatBonus * float64(n-1)
		if p.HasWord(lowered) {
			score += WordBonus
		}
	}
	return score
}

// EngagementBonus is total engagement divided by EngagementDivisor, capped.
func EngagementBonus(r corpus.Record) float64 {
	e := float64(r.Engagement())
	if e <= 0 {
		return 0
	}
	return math.Min(e/EngagementDivisor, EngagementCap)
}

// RecencyBonus decays linearly from RecencyMax for records younger than
// RecencyDays. Timestamps in the future count as brand new.
func RecencyBonus(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays >= RecencyDays {
		return 0
	}
	return math.Max(0, RecencyMax-ageDays/recencyDecayDays)
}
