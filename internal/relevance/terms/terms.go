// Package terms turns a free-text question into the ordered term set used
// for scoring. It lower-cases input, lifts out quoted phrases, splits the rest
// on non-alphanumeric boundaries, removes stop-words and short tokens, and
// appends synonyms for a few concepts the corpus talks about in varied words.
package terms

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
	"about": {}, "any": {}, "did": {}, "does": {}, "how": {},
	"why": {}, "you": {}, "your": {}, "yours": {}, "she": {},
	"her": {}, "him": {}, "his": {}, "them": {}, "our": {},
	"ours": {}, "we": {}, "me": {}, "my": {}, "mine": {},
	"i": {}, "there": {}, "these": {}, "those": {}, "been": {},
	"being": {}, "would": {}, "could": {}, "should": {}, "than": {},
	"then": {}, "also": {}, "just": {}, "into": {}, "over": {},
	"some": {}, "tell": {}, "know": {}, "think": {}, "say": {},
	"said": {}, "ever": {}, "all": {}, "more": {}, "most": {},
	"very": {}, "really": {}, "get": {}, "got": {}, "out": {},
}

// expansion appends related vocabulary whenever a trigger word appears.
type expansion struct {
	name     string
	triggers []string
	related  []string
}

var expansions = []expansion{
	{
		name:     "release",
		triggers: []string{"release", "released", "releasing", "launch", "launching", "launched", "drop", "dropping", "ship", "shipping", "coming", "eta"},
		related:  []string{"launch", "launching", "launched", "release", "released", "releasing", "drop", "dropping", "live", "shipping", "shipped", "available", "coming", "soon", "hours", "tomorrow", "today", "announce", "announcing"},
	},
	{
		name:     "pricing",
		triggers: []string{"price", "pricing", "cost", "costs", "pay", "paid", "free", "subscription", "cheap", "expensive"},
		related:  []string{"price", "pricing", "cost", "free", "paid", "subscription", "plan", "tier", "discount", "$"},
	},
	{
		name:     "availability",
		triggers: []string{"platform", "platforms", "download", "install", "console", "mobile"},
		related:  []string{"ios", "android", "steam", "mac", "windows", "linux", "web", "app", "download"},
	},
	{
		name:     "hiring",
		triggers: []string{"hiring", "hire", "job", "jobs", "role", "career", "careers", "join"},
		related:  []string{"hiring", "hire", "job", "role", "position", "apply", "team", "join"},
	},
}

var phrasePattern = regexp.MustCompile(`"([^"]*)"`)

// TermSet is the ordered, deduplicated term list derived from one query. The
// tiers are kept separately for diagnostics; Terms is what scoring consumes.
type TermSet struct {
	Phrases  []string
	Expanded []string
	Words    []string
	Terms    []string
	Rules    []string
}

// Empty reports whether no term survived extraction.
func (ts TermSet) Empty() bool {
	return len(ts.Terms) == 0
}

// Extract derives a TermSet from a raw query. It never fails; unbalanced
// quote characters are treated like any other separator.
func Extract(query string) TermSet {
	query = strings.ToLower(query)

	var ts TermSet
	for _, m := range phrasePattern.FindAllStringSubmatch(query, -1) {
		phrase := strings.TrimSpace(m[1])
		if phrase != "" {
			ts.Phrases = append(ts.Phrases, phrase)
		}
	}
	unquoted := phrasePattern.ReplaceAllString(query, " ")
	ts.Words = Tokenize(unquoted)

	present := make(map[string]struct{})
	for _, w := range splitWords(query) {
		present[w] = struct{}{}
	}
	for _, rule := range expansions {
		if rule.fires(present) {
			ts.Expanded = append(ts.Expanded, rule.related...)
			ts.Rules = append(ts.Rules, rule.name)
		}
	}

	all := make([]string, 0, len(ts.Phrases)+len(ts.Expanded)+len(ts.Words))
	all = append(all, ts.Phrases...)
	all = append(all, ts.Expanded...)
	all = append(all, ts.Words...)
	ts.Terms = dedupe(all)
	return ts
}

// Tokenize splits lowercased text into alphanumeric runs, dropping tokens of
// two runes or fewer and stop-words.
func Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// IsStopWord reports whether word is in the closed stop-word list.
func IsStopWord(word string) bool {
	_, ok := stopWords[strings.ToLower(word)]
	return ok
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (e expansion) fires(present map[string]struct{}) bool {
	for _, t := range e.triggers {
		if _, ok := present[t]; ok {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
