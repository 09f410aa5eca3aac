package rawscan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/match"
)

// Index is a read-only inverted index over the raw store, built once per
// corpus snapshot. Tokens are maximal letter/digit runs of the lowercased
// line. A term made only of letters and digits occurs in a line exactly when
// it occurs inside one of that line's tokens, so such terms are resolved by
// walking the vocabulary instead of the store. Terms with any other character
// fall back to a scan of the cached lines.
type Index struct {
	lines    []string
	ids      [][]string
	postings map[string][]int
	vocab    []string
	opts     Options
	logger   *slog.Logger
}

// OpenIndex reads and indexes the file at path.
func OpenIndex(path string, opts Options) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening raw store: %w", err)
	}
	defer f.Close()
	idx, err := BuildIndex(f, opts)
	if err != nil {
		return nil, fmt.Errorf("indexing raw store %s: %w", path, err)
	}
	return idx, nil
}

// BuildIndex indexes everything readable from r.
func BuildIndex(r io.Reader, opts Options) (*Index, error) {
	idx := &Index{
		postings: make(map[string][]int),
		opts:     opts.withDefaults(),
		logger:   slog.Default().With("component", "rawscan-index"),
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for n := 0; sc.Scan(); n++ {
		line := sc.Text()
		lower := searchable(line)
		idx.lines = append(idx.lines, lower)
		idx.ids = append(idx.ids, extractIDs(idx.opts.IDPattern, line))
		for _, tok := range tokens(lower) {
			pl := idx.postings[tok]
			if len(pl) > 0 && pl[len(pl)-1] == n {
				continue
			}
			idx.postings[tok] = append(pl, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading raw store: %w", err)
	}
	idx.vocab = make([]string, 0, len(idx.postings))
	for tok := range idx.postings {
		idx.vocab = append(idx.vocab, tok)
	}
	sort.Strings(idx.vocab)
	idx.logger.Info("raw index built",
		"lines", len(idx.lines),
		"vocabulary", len(idx.vocab),
	)
	return idx, nil
}

// Lines returns the number of indexed lines.
func (idx *Index) Lines() int {
	return len(idx.lines)
}

// Match returns identifiers within the window of every line containing any
// term. Cancellation degrades to an empty set.
func (idx *Index) Match(ctx context.Context, terms []string) MatchSet {
	hits := make(map[int]struct{})
	for _, p := range match.CompileAll(terms) {
		if ctx.Err() != nil {
			idx.degrade(fmt.Errorf("raw index lookup interrupted: %w", ctx.Err()))
			return MatchSet{}
		}
		if isToken(p.Term()) {
			idx.lookupToken(p, hits)
		} else {
			idx.lookupLines(p, hits)
		}
	}
	return idx.collect(hits)
}

func (idx *Index) lookupToken(p *match.Pattern, hits map[int]struct{}) {
	for _, tok := range idx.vocab {
		if !p.Contains(tok) {
			continue
		}
		for _, n := range idx.postings[tok] {
			hits[n] = struct{}{}
		}
	}
}

func (idx *Index) lookupLines(p *match.Pattern, hits map[int]struct{}) {
	for n, line := range idx.lines {
		if p.Contains(line) {
			hits[n] = struct{}{}
		}
	}
}

// collect merges the windows around each hit so every line is visited once.
func (idx *Index) collect(hits map[int]struct{}) MatchSet {
	result := MatchSet{}
	if len(hits) == 0 {
		return result
	}
	sorted := make([]int, 0, len(hits))
	for n := range hits {
		sorted = append(sorted, n)
	}
	sort.Ints(sorted)

	w := idx.opts.Window
	next := 0
	for _, n := range sorted {
		lo := max(n-w, next)
		hi := min(n+w, len(idx.ids)-1)
		for i := lo; i <= hi; i++ {
			add(result, idx.ids[i])
		}
		next = max(next, hi+1)
	}
	return result
}

func (idx *Index) degrade(err error) {
	idx.logger.Warn("raw index lookup degraded to empty match set", "error", err)
	if idx.opts.OnError != nil {
		idx.opts.OnError(err)
	}
}

func tokens(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !isTokenRune(r)
	})
}

func isToken(term string) bool {
	if term == "" {
		return false
	}
	for _, r := range term {
		if !isTokenRune(r) {
			return false
		}
	}
	return true
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
