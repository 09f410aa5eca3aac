// Package match compiles query terms into literal, case-insensitive patterns.
// Every term is escaped once with regexp.QuoteMeta; the occurrence count and
// the whole-word check both derive from that escaped form. Word boundaries
// follow the tokenizer: a word is a maximal run of letters and digits.
package match

import (
	"regexp"
	"strings"
)

const (
	wordStart = `(?:^|[^\p{L}\p{Nd}])`
	wordEnd   = `(?:$|[^\p{L}\p{Nd}])`
)

// Pattern is a compiled query term. Text passed to its methods must already
// be lowercased; terms are lowercased at compile time.
type Pattern struct {
	term string
	word *regexp.Regexp
}

// Escape returns term with every regexp metacharacter quoted.
func Escape(term string) string {
	return regexp.QuoteMeta(term)
}

// Compile builds a Pattern for term. It never fails: the term is always
// escaped before being embedded in the word-boundary expression.
func Compile(term string) *Pattern {
	term = strings.ToLower(term)
	return &Pattern{
		term: term,
		word: regexp.MustCompile(wordStart + Escape(term) + wordEnd),
	}
}

// CompileAll compiles terms in order.
func CompileAll(terms []string) []*Pattern {
	out := make([]*Pattern, 0, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		out = append(out, Compile(t))
	}
	return out
}

// Term returns the lowercased literal.
func (p *Pattern) Term() string {
	return p.term
}

// Contains reports whether the term occurs anywhere in text.
func (p *Pattern) Contains(text string) bool {
	return strings.Contains(text, p.term)
}

// Count returns the number of non-overlapping occurrences of the term.
func (p *Pattern) Count(text string) int {
	if p.term == "" {
		return 0
	}
	return strings.Count(text, p.term)
}

// HasWord reports whether the term occurs with no letter or digit directly
// before or after it.
func (p *Pattern) HasWord(text string) bool {
	return p.word.MatchString(text)
}
