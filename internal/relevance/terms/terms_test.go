package terms

import (
	"reflect"
	"testing"
)

func TestExtractWordsOnly(t *testing.T) {
	ts := Extract("Ninja Gaiden remaster trailer")
	want := []string{"ninja", "gaiden", "remaster", "trailer"}
	if !reflect.DeepEqual(ts.Terms, want) {
		t.Errorf("Terms = %v, want %v", ts.Terms, want)
	}
	if len(ts.Phrases) != 0 || len(ts.Expanded) != 0 {
		t.Errorf("unexpected tiers: %+v", ts)
	}
}

func TestExtractStopWordsOnly(t *testing.T) {
	for _, q := range []string{"the and or", "", "   ", "is it on?", "a b c"} {
		ts := Extract(q)
		if !ts.Empty() {
			t.Errorf("Extract(%q) = %v, want empty", q, ts.Terms)
		}
	}
}

func TestExtractPhrasesFirst(t *testing.T) {
	ts := Extract(`what about "Early Access"   pricing?`)
	if len(ts.Phrases) != 1 || ts.Phrases[0] != "early access" {
		t.Fatalf("Phrases = %v", ts.Phrases)
	}
	if ts.Terms[0] != "early access" {
		t.Errorf("phrase must lead the term list, got %v", ts.Terms)
	}
	if !contains(ts.Rules, "pricing") {
		t.Errorf("pricing rule should fire, rules=%v", ts.Rules)
	}
	// words from inside the phrase are not repeated as bag-of-words tokens
	if contains(ts.Words, "early") || contains(ts.Words, "access") {
		t.Errorf("phrase words leaked into Words: %v", ts.Words)
	}
	last := ts.Terms[len(ts.Terms)-1]
	if last != "pricing" && !contains(ts.Expanded, last) {
		t.Errorf("bag-of-words terms must come last, got %v", ts.Terms)
	}
}

func TestExtractReleaseExpansion(t *testing.T) {
	ts := Extract("ninja release date")
	for _, want := range []string{"launch", "launching", "release", "ninja", "date"} {
		if !contains(ts.Terms, want) {
			t.Errorf("expected %q in %v", want, ts.Terms)
		}
	}
	if idx(ts.Terms, "launch") > idx(ts.Terms, "ninja") {
		t.Errorf("expansion terms must precede word terms: %v", ts.Terms)
	}
	if countOf(ts.Terms, "release") != 1 {
		t.Errorf("terms must be deduplicated: %v", ts.Terms)
	}
}

func TestExtractMultipleRulesFire(t *testing.T) {
	ts := Extract("when is the launch and how much does the subscription cost")
	if !contains(ts.Rules, "release") || !contains(ts.Rules, "pricing") {
		t.Errorf("expected release and pricing rules, got %v", ts.Rules)
	}
}

func TestExtractUnbalancedQuote(t *testing.T) {
	ts := Extract(`"steam deck support`)
	if len(ts.Phrases) != 0 {
		t.Errorf("unbalanced quote must not produce a phrase: %v", ts.Phrases)
	}
	for _, w := range []string{"steam", "deck", "support"} {
		if !contains(ts.Terms, w) {
			t.Errorf("expected %q in %v", w, ts.Terms)
		}
	}
}

func TestExtractEmptyPhraseIgnored(t *testing.T) {
	ts := Extract(`"" "   " ninja`)
	if len(ts.Phrases) != 0 {
		t.Errorf("empty phrases must be dropped: %v", ts.Phrases)
	}
	if !reflect.DeepEqual(ts.Terms, []string{"ninja"}) {
		t.Errorf("Terms = %v", ts.Terms)
	}
}

func TestExtractPhraseKeepsInnerSpacing(t *testing.T) {
	ts := Extract(`"  Ninja  Launching "`)
	if !reflect.DeepEqual(ts.Phrases, []string{"ninja  launching"}) {
		t.Errorf("Phrases = %q", ts.Phrases)
	}
}

func TestExtractStable(t *testing.T) {
	q := `"boss fight" release on steam price`
	a, b := Extract(q), Extract(q)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Extract is not deterministic:\n%v\n%v", a, b)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Héllo, wörld! v2 is 100% réel — ok")
	want := []string{"héllo", "wörld", "100", "réel"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestIsStopWord(t *testing.T) {
	if !IsStopWord("The") || IsStopWord("ninja") {
		t.Error("IsStopWord misclassified input")
	}
}

func contains(list []string, s string) bool { return idx(list, s) >= 0 }

func idx(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
