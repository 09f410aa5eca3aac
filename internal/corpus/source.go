package corpus

import (
	"context"
	"sort"
)

// Source loads the full record list. Implementations return records in any
// order; the Store sorts them newest-first before publishing.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Record, error)
}

// StaticSource serves a fixed record list. It backs tests and the CLI when
// records are already in memory.
type StaticSource struct {
	Label   string
	Records []Record
}

func (s StaticSource) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

func (s StaticSource) Load(context.Context) ([]Record, error) {
	out := make([]Record, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

// SortNewestFirst orders records by CreatedAt descending. Equal timestamps
// keep their load order.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
