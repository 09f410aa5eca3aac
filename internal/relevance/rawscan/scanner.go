package rawscan

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/match"
)

const (
	maxLineBytes     = 16 * 1024 * 1024
	ctxCheckInterval = 1024
)

// Scanner re-reads the raw store on every query. It holds no state besides
// the path, so it is safe for concurrent use and always sees the file as it
// currently is on disk.
type Scanner struct {
	path   string
	opts   Options
	logger *slog.Logger
}

// NewScanner creates a Scanner over the file at path.
func NewScanner(path string, opts Options) *Scanner {
	return &Scanner{
		path:   path,
		opts:   opts.withDefaults(),
		logger: slog.Default().With("component", "rawscan", "path", path),
	}
}

// Match scans the file once. Any read failure or cancellation degrades to an
// empty set.
func (s *Scanner) Match(ctx context.Context, terms []string) MatchSet {
	patterns := match.CompileAll(terms)
	if len(patterns) == 0 {
		return MatchSet{}
	}
	f, err := os.Open(s.path)
	if err != nil {
		s.degrade(fmt.Errorf("opening raw store: %w", err))
		return MatchSet{}
	}
	defer f.Close()

	result, err := scan(ctx, f, patterns, s.opts)
	if err != nil {
		s.degrade(err)
		return MatchSet{}
	}
	s.logger.Debug("raw scan complete", "terms", len(patterns), "matches", len(result))
	return result
}

func (s *Scanner) degrade(err error) {
	s.logger.Warn("raw scan degraded to empty match set", "error", err)
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
}

// scan streams r keeping the identifiers of the last Window lines in a ring.
// A hit credits the ring plus the current line, then keeps crediting for the
// next Window lines.
func scan(ctx context.Context, r io.Reader, patterns []*match.Pattern, opts Options) (MatchSet, error) {
	result := MatchSet{}
	ring := make([][]string, opts.Window)
	forward := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for n := 0; sc.Scan(); n++ {
		if n%ctxCheckInterval == 0 && ctx.Err() != nil {
			return nil, fmt.Errorf("raw scan interrupted: %w", ctx.Err())
		}
		line := sc.Text()
		ids := extractIDs(opts.IDPattern, line)

		if lineMatches(searchable(line), patterns) {
			for _, prev := range ring {
				add(result, prev)
			}
			forward = opts.Window
			add(result, ids)
		} else if forward > 0 {
			forward--
			add(result, ids)
		}

		if opts.Window > 0 {
			ring[n%opts.Window] = ids
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading raw store: %w", err)
	}
	return result, nil
}

func lineMatches(lower string, patterns []*match.Pattern) bool {
	for _, p := range patterns {
		if p.Contains(lower) {
			return true
		}
	}
	return false
}

func add(set MatchSet, ids []string) {
	for _, id := range ids {
		set[id] = struct{}{}
	}
}
