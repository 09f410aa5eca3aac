// Package rawscan recovers record identifiers by matching query terms against
// the raw export text instead of the parsed corpus. Parsing may drop or
// rewrite text (truncation, repost filtering), so a literal hit in the raw
// store can surface records the scorer would otherwise miss. Every identifier
// found within a fixed line window around a hit is credited, because a single
// record usually spans several lines of the export with its identifier on a
// neighbouring line.
package rawscan

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultWindow is the number of lines inspected on each side of a hit.
	DefaultWindow = 20
	// NoWindow restricts crediting to the identifiers on the matching line.
	NoWindow = -1
)

// DefaultIDPattern extracts identifiers from a pretty-printed JSON export.
var DefaultIDPattern = regexp.MustCompile(`"id_str"\s*:\s*"(\d+)"`)

// keyPattern matches a JSON object key with its colon. Keys such as
// "full_text" appear on every record, so they are never matched.
var keyPattern = regexp.MustCompile(`"[^"\\]*"\s*:`)

// MatchSet is the set of identifiers recovered for one query.
type MatchSet map[string]struct{}

// Has reports whether id was recovered.
func (m MatchSet) Has(id string) bool {
	_, ok := m[id]
	return ok
}

// IDs returns the identifiers in sorted order.
func (m MatchSet) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Matcher finds identifiers near textual matches of any term. Implementations
// never fail: an unreadable store yields an empty set.
type Matcher interface {
	Match(ctx context.Context, terms []string) MatchSet
}

// Options configures both the streaming scanner and the prebuilt index.
type Options struct {
	// Window is the number of lines credited on each side of a hit. Zero
	// means DefaultWindow; NoWindow credits the matching line only.
	Window    int
	IDPattern *regexp.Regexp
	// OnError, when set, is told about every degraded scan.
	OnError func(error)
}

func (o Options) withDefaults() Options {
	switch {
	case o.Window == 0:
		o.Window = DefaultWindow
	case o.Window < 0:
		o.Window = 0
	}
	if o.IDPattern == nil {
		o.IDPattern = DefaultIDPattern
	}
	return o
}

// LineWindow converts a configured scan window, where 0 means the matching
// line only, into an Options.Window value.
func LineWindow(lines int) int {
	if lines <= 0 {
		return NoWindow
	}
	return lines
}

// searchable lowercases line and blanks out its JSON keys.
func searchable(line string) string {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, ":") {
		return lower
	}
	return keyPattern.ReplaceAllString(lower, " ")
}

// extractIDs returns every identifier captured on one line.
func extractIDs(re *regexp.Regexp, line string) []string {
	matches := re.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 && m[1] != "" {
			ids = append(ids, m[1])
		}
	}
	return ids
}

// Nop is a Matcher that never matches. It stands in when no raw store is
// configured.
type Nop struct{}

func (Nop) Match(context.Context, []string) MatchSet { return MatchSet{} }
