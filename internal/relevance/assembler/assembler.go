// Package assembler merges the most recent records with the ranked relevant
// ones and renders them into the text block handed to the language model.
package assembler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/dedup"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/terms"
)

// NoDataMessage is the whole context when the corpus is empty.
const NoDataMessage = "No data available: the post archive is empty or has not been loaded."

const (
	DefaultRecencyWindow = 75
	DefaultMaxRecords    = 200
	dateLayout           = "2006-01-02"
)

// Options caps the assembled set.
type Options struct {
	RecencyWindow int
	MaxRecords    int
	Owner         string
}

func (o Options) withDefaults() Options {
	if o.RecencyWindow < 0 {
		o.RecencyWindow = 0
	}
	if o.MaxRecords <= 0 {
		o.MaxRecords = DefaultMaxRecords
	}
	return o
}

// Assembly is the final record selection plus its rendering.
type Assembly struct {
	Records []corpus.Record
	Context string
}

// Assemble puts the recency window ahead of the ranked records so window
// copies win duplicate resolution, then orders the survivors newest-first and
// truncates. An empty snapshot short-circuits to NoDataMessage.
func Assemble(snap *corpus.Snapshot, relevant []corpus.Record, ts terms.TermSet, opts Options) Assembly {
	if snap.Len() == 0 {
		return Assembly{Context: NoDataMessage}
	}
	opts = opts.withDefaults()

	window := min(opts.RecencyWindow, snap.Len())
	merged := make([]corpus.Record, 0, window+len(relevant))
	merged = append(merged, snap.Records[:window]...)
	merged = append(merged, relevant...)

	selected := dedup.Records(merged)
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].CreatedAt.After(selected[j].CreatedAt)
	})
	if len(selected) > opts.MaxRecords {
		selected = selected[:opts.MaxRecords]
	}
	return Assembly{
		Records: selected,
		Context: Render(snap, selected, ts, opts.Owner),
	}
}

// Render writes the metadata header followed by one block per record,
// separated by blank lines.
func Render(snap *corpus.Snapshot, records []corpus.Record, ts terms.TermSet, owner string) string {
	if snap.Len() == 0 {
		return NoDataMessage
	}
	var b strings.Builder
	oldest, newest := snap.Span()
	if owner != "" {
		fmt.Fprintf(&b, "Posts by @%s\n", strings.TrimPrefix(owner, "@"))
	}
	fmt.Fprintf(&b, "Total posts in archive: %d\n", snap.Len())
	fmt.Fprintf(&b, "Date range: %s to %s\n", formatDate(oldest), formatDate(newest))
	fmt.Fprintf(&b, "Posts included below: %d\n", len(records))
	if ts.Empty() {
		b.WriteString("Search terms: (none, most recent posts only)\n")
	} else {
		fmt.Fprintf(&b, "Search terms: %s\n", strings.Join(ts.Terms, ", "))
	}

	for _, r := range records {
		b.WriteString("\n")
		b.WriteString(Line(r))
		b.WriteString("\n")
	}
	return b.String()
}

// Line renders one record as `[date] text [engagement] url`.
func Line(r corpus.Record) string {
	text := strings.Join(strings.Fields(r.Text), " ")
	line := fmt.Sprintf("[%s] %s [likes: %d, reposts: %d, replies: %d]",
		formatDate(r.CreatedAt), text, r.Likes, r.Reposts, r.Replies)
	if r.URL != "" {
		line += " " + r.URL
	}
	return line
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return t.Format(dateLayout)
}
