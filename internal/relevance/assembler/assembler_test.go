package assembler

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/terms"
)

var base = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

// newestFirst builds n records, record i being i days older than base.
func newestFirst(n int) []corpus.Record {
	out := make([]corpus.Record, n)
	for i := range out {
		out[i] = corpus.Record{
			ID:        fmt.Sprintf("r%03d", i),
			Text:      fmt.Sprintf("post number %d", i),
			CreatedAt: base.AddDate(0, 0, -i),
		}
	}
	return out
}

func TestAssembleEmptyCorpus(t *testing.T) {
	for _, q := range []string{"", "ninja release", `"quoted"`} {
		a := Assemble(corpus.NewSnapshot(nil, nil, "test"), nil, terms.Extract(q), Options{})
		if a.Context != NoDataMessage {
			t.Errorf("query %q: context = %q", q, a.Context)
		}
		if len(a.Records) != 0 {
			t.Errorf("query %q: expected no records", q)
		}
	}
	var nilSnap *corpus.Snapshot
	if a := Assemble(nilSnap, nil, terms.TermSet{}, Options{}); a.Context != NoDataMessage {
		t.Errorf("nil snapshot: context = %q", a.Context)
	}
}

func TestAssembleRecencyOnly(t *testing.T) {
	records := newestFirst(100)
	snap := corpus.NewSnapshot(records, nil, "test")
	a := Assemble(snap, nil, terms.TermSet{}, Options{RecencyWindow: 75, MaxRecords: 200})
	if len(a.Records) != 75 {
		t.Fatalf("expected 75 records, got %d", len(a.Records))
	}
	for i, r := range a.Records {
		if r.ID != records[i].ID {
			t.Fatalf("record %d = %s, want %s", i, r.ID, records[i].ID)
		}
	}
	if !strings.Contains(a.Context, "Search terms: (none") {
		t.Errorf("context should note the empty term set:\n%s", a.Context)
	}
}

func TestAssembleMergesDedupesAndSorts(t *testing.T) {
	records := newestFirst(10)
	snap := corpus.NewSnapshot(records, nil, "test")
	relevant := []corpus.Record{records[8], records[1], records[9]}
	a := Assemble(snap, relevant, terms.Extract("post"), Options{RecencyWindow: 3, MaxRecords: 200})

	got := make([]string, len(a.Records))
	for i, r := range a.Records {
		got[i] = r.ID
	}
	if fmt.Sprint(got) != "[r000 r001 r002 r008 r009]" {
		t.Errorf("selection = %v", got)
	}
}

func TestAssembleWindowCopyWins(t *testing.T) {
	records := newestFirst(3)
	snap := corpus.NewSnapshot(records, nil, "test")
	dup := records[0]
	dup.Text = "ranked duplicate"
	a := Assemble(snap, []corpus.Record{dup}, terms.TermSet{}, Options{RecencyWindow: 3})
	if a.Records[0].Text != records[0].Text {
		t.Errorf("window copy should win, got %q", a.Records[0].Text)
	}
}

func TestAssembleCapsAndUniqueness(t *testing.T) {
	records := newestFirst(500)
	snap := corpus.NewSnapshot(records, nil, "test")
	relevant := make([]corpus.Record, 0, 150)
	for i := 499; i >= 350; i-- {
		relevant = append(relevant, records[i])
	}
	relevant = append(relevant, records[:20]...)
	a := Assemble(snap, relevant, terms.Extract("post"), Options{RecencyWindow: 75, MaxRecords: 200})
	if len(a.Records) != 200 {
		t.Fatalf("expected cap of 200, got %d", len(a.Records))
	}
	seen := map[string]bool{}
	for i, r := range a.Records {
		if seen[r.ID] {
			t.Fatalf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
		if i > 0 && r.CreatedAt.After(a.Records[i-1].CreatedAt) {
			t.Fatalf("records not sorted newest-first at %d", i)
		}
	}
	for i := 0; i < 75; i++ {
		if !seen[records[i].ID] {
			t.Errorf("recency window record %s missing", records[i].ID)
		}
	}
}

func TestRenderHeaderAndLines(t *testing.T) {
	records := []corpus.Record{
		{ID: "2", Text: "Ninja launching\nin 24 hours", CreatedAt: base, Likes: 12, Reposts: 3, Replies: 1, URL: "https://x.com/ninja/status/2"},
		{ID: "1", Text: "first post", CreatedAt: base.AddDate(-1, 0, 0)},
	}
	snap := corpus.NewSnapshot(records, nil, "test")
	out := Render(snap, records, terms.Extract("ninja"), "@ninja")

	for _, want := range []string{
		"Posts by @ninja\n",
		"Total posts in archive: 2\n",
		"Date range: 2025-10-01 to 2026-10-01\n",
		"Posts included below: 2\n",
		"Search terms: ninja\n",
		"\n[2026-10-01] Ninja launching in 24 hours [likes: 12, reposts: 3, replies: 1] https://x.com/ninja/status/2\n",
		"\n[2025-10-01] first post [likes: 0, reposts: 0, replies: 0]\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered context missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Ninja launching") > strings.Index(out, "first post") {
		t.Error("records must render in the given order")
	}
}

func TestLineUnknownDate(t *testing.T) {
	if got := Line(corpus.Record{Text: "undated"}); !strings.HasPrefix(got, "[unknown date] undated") {
		t.Errorf("Line = %q", got)
	}
}
