// Package corpus owns the in-memory record collection the context engine
// reads from. Records are loaded by a Source, wrapped in an immutable
// Snapshot, and published through a Store that swaps whole snapshots on
// refresh so readers never observe a half-built corpus.
package corpus

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/rawscan"
)

// Record is one short post from the export. Identifiers are not assumed to be
// unique; duplicates are resolved downstream at selection time.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Author    string    `json:"author"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"reposts"`
	Replies   int       `json:"replies"`
	URL       string    `json:"url,omitempty"`
}

// Engagement is the sum of all interaction counters.
func (r Record) Engagement() int {
	return r.Likes + r.Reposts + r.Replies
}

// Snapshot is one fully loaded corpus. It must not be modified after
// construction; a refresh builds a new Snapshot instead.
type Snapshot struct {
	Records  []Record
	Raw      rawscan.Matcher
	Version  int64
	Source   string
	LoadedAt time.Time
}

// NewSnapshot wraps records (expected newest-first) and a raw matcher. A nil
// matcher is replaced by one that never matches.
func NewSnapshot(records []Record, raw rawscan.Matcher, source string) *Snapshot {
	if raw == nil {
		raw = rawscan.Nop{}
	}
	return &Snapshot{
		Records:  records,
		Raw:      raw,
		Source:   source,
		LoadedAt: time.Now().UTC(),
	}
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Span returns the oldest and newest record timestamps. Both are zero for an
// empty snapshot.
func (s *Snapshot) Span() (oldest, newest time.Time) {
	if s.Len() == 0 {
		return time.Time{}, time.Time{}
	}
	oldest, newest = s.Records[0].CreatedAt, s.Records[0].CreatedAt
	for _, r := range s.Records[1:] {
		if r.CreatedAt.Before(oldest) {
			oldest = r.CreatedAt
		}
		if r.CreatedAt.After(newest) {
			newest = r.CreatedAt
		}
	}
	return oldest, newest
}
