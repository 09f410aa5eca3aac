package dedup

import "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"

// Records returns the records in order, keeping only the first occurrence of
// each identifier. Content is never compared.
func Records(records []corpus.Record) []corpus.Record {
	if len(records) <= 1 {
		return records
	}
	seen := make(map[string]struct{}, len(records))
	result := make([]corpus.Record, 0, len(records))
	for _, r := range records {
		if _, exists := seen[r.ID]; exists {
			continue
		}
		seen[r.ID] = struct{}{}
		result = append(result, r)
	}
	return result
}
