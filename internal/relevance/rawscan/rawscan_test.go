package rawscan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"
)

// rawExport mimics a pretty-printed archive: each record spans several lines
// and its id_str sits a few lines away from full_text.
func rawExport(records map[string]string, order []string) string {
	var b strings.Builder
	b.WriteString("window.YTD.tweets.part0 = [\n")
	for i, id := range order {
		b.WriteString("  {\n    \"tweet\" : {\n")
		b.WriteString("      \"retweeted\" : false,\n")
		fmt.Fprintf(&b, "      \"id_str\" : \"%s\",\n", id)
		b.WriteString("      \"favorite_count\" : \"3\",\n")
		fmt.Fprintf(&b, "      \"full_text\" : \"%s\",\n", records[id])
		b.WriteString("      \"lang\" : \"en\"\n    }\n  }")
		if i < len(order)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	return b.String()
}

func writeStore(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tweets.js")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScannerFindsIdentifierNearMatch(t *testing.T) {
	path := writeStore(t, rawExport(map[string]string{
		"100": "Ninja LAUNCHING in 24 hours",
		"200": "lunch break",
	}, []string{"100", "200"}))

	got := NewScanner(path, Options{Window: 3}).Match(context.Background(), []string{"launching"})
	if !got.Has("100") {
		t.Fatalf("expected id 100, got %v", got.IDs())
	}
	if got.Has("200") {
		t.Errorf("id 200 is outside the window, got %v", got.IDs())
	}
}

func TestScannerWindowCreditsAllNeighbours(t *testing.T) {
	path := writeStore(t, rawExport(map[string]string{
		"1": "alpha",
		"2": "beta launch",
		"3": "gamma",
	}, []string{"1", "2", "3"}))

	got := NewScanner(path, Options{Window: DefaultWindow}).Match(context.Background(), []string{"launch"})
	want := []string{"1", "2", "3"}
	if !reflect.DeepEqual(got.IDs(), want) {
		t.Errorf("IDs() = %v, want %v", got.IDs(), want)
	}
}

func TestScannerMissingStoreDegrades(t *testing.T) {
	var reported error
	s := NewScanner(filepath.Join(t.TempDir(), "missing.js"), Options{
		OnError: func(err error) { reported = err },
	})
	got := s.Match(context.Background(), []string{"anything"})
	if len(got) != 0 {
		t.Errorf("expected empty set, got %v", got.IDs())
	}
	if reported == nil || !errors.Is(reported, os.ErrNotExist) {
		t.Errorf("expected not-exist error to be reported, got %v", reported)
	}
}

func TestScannerCancelledContextDegrades(t *testing.T) {
	path := writeStore(t, rawExport(map[string]string{"1": "launch"}, []string{"1"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := NewScanner(path, Options{}).Match(ctx, []string{"launch"}); len(got) != 0 {
		t.Errorf("expected empty set on cancelled context, got %v", got.IDs())
	}
}

func TestScannerNoTerms(t *testing.T) {
	path := writeStore(t, rawExport(map[string]string{"1": "launch"}, []string{"1"}))
	if got := NewScanner(path, Options{}).Match(context.Background(), nil); len(got) != 0 {
		t.Errorf("expected empty set without terms, got %v", got.IDs())
	}
}

func TestCustomIDPattern(t *testing.T) {
	path := writeStore(t, "id=a1\nsomething about ninjas\nid=b2\n")
	opts := Options{Window: 1, IDPattern: regexp.MustCompile(`id=(\w+)`)}
	got := NewScanner(path, opts).Match(context.Background(), []string{"ninja"})
	if !reflect.DeepEqual(got.IDs(), []string{"a1", "b2"}) {
		t.Errorf("IDs() = %v", got.IDs())
	}
}

func TestIndexAgreesWithScanner(t *testing.T) {
	records := map[string]string{
		"11": "Ninja launching in 24 hours",
		"12": "pricing: $5 per month",
		"13": "hello world",
		"14": "the c++ port is live",
		"15": "Café opening",
	}
	order := []string{"11", "12", "13", "14", "15"}
	path := writeStore(t, rawExport(records, order))

	for _, window := range []int{NoWindow, 2, DefaultWindow} {
		opts := Options{Window: window}
		scanner := NewScanner(path, opts)
		idx, err := OpenIndex(path, opts)
		if err != nil {
			t.Fatalf("OpenIndex: %v", err)
		}
		queries := [][]string{
			{"launch"},
			{"$5"},
			{"c++"},
			{"café"},
			{"orld"},
			{"ninja launching"},
			{"nothing-here"},
			{"hello", "pricing"},
		}
		for _, q := range queries {
			name := fmt.Sprintf("w%d/%s", window, strings.Join(q, "+"))
			t.Run(name, func(t *testing.T) {
				want := scanner.Match(context.Background(), q).IDs()
				got := idx.Match(context.Background(), q).IDs()
				if !reflect.DeepEqual(got, want) {
					t.Errorf("index = %v, scanner = %v", got, want)
				}
			})
		}
	}
}

func TestIndexNoWindowOnlyCreditsSameLine(t *testing.T) {
	idx, err := BuildIndex(strings.NewReader("\"id_str\" : \"7\", \"full_text\" : \"launch day\"\n\"id_str\" : \"8\"\n"), Options{Window: NoWindow})
	if err != nil {
		t.Fatal(err)
	}
	got := idx.Match(context.Background(), []string{"launch"})
	if !reflect.DeepEqual(got.IDs(), []string{"7"}) {
		t.Errorf("IDs() = %v", got.IDs())
	}
	if idx.Lines() != 2 {
		t.Errorf("Lines() = %d", idx.Lines())
	}
}

// spacedStore puts id 42 sixteen lines above the hit and id 99 twenty-two
// lines below it.
func spacedStore() string {
	var b strings.Builder
	b.WriteString("\"id_str\" : \"42\",\n")
	for i := 0; i < 15; i++ {
		b.WriteString("\"lang\" : \"en\",\n")
	}
	b.WriteString("\"full_text\" : \"launch party\",\n")
	for i := 0; i < 21; i++ {
		b.WriteString("\"lang\" : \"en\",\n")
	}
	b.WriteString("\"id_str\" : \"99\",\n")
	return b.String()
}

func TestZeroOptionsUseDefaultWindow(t *testing.T) {
	path := writeStore(t, spacedStore())
	idx, err := OpenIndex(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	matchers := map[string]Matcher{"scanner": NewScanner(path, Options{}), "index": idx}
	for name, m := range matchers {
		t.Run(name, func(t *testing.T) {
			got := m.Match(context.Background(), []string{"launch"})
			if !reflect.DeepEqual(got.IDs(), []string{"42"}) {
				t.Errorf("IDs() = %v, want [42]", got.IDs())
			}
		})
	}
	if got := NewScanner(path, Options{Window: NoWindow}).Match(context.Background(), []string{"launch"}); len(got) != 0 {
		t.Errorf("NoWindow should credit nothing off the hit line, got %v", got.IDs())
	}
}

func TestLineWindow(t *testing.T) {
	tests := []struct{ in, want int }{{0, NoWindow}, {-3, NoWindow}, {5, 5}, {DefaultWindow, DefaultWindow}}
	for _, tt := range tests {
		if got := LineWindow(tt.in); got != tt.want {
			t.Errorf("LineWindow(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestKeysAreNotMatched(t *testing.T) {
	path := writeStore(t, rawExport(map[string]string{
		"21": "Ninja launching in 24 hours",
		"22": "plain text post",
	}, []string{"21", "22"}))
	idx, err := OpenIndex(path, Options{Window: 3})
	if err != nil {
		t.Fatal(err)
	}
	matchers := map[string]Matcher{"scanner": NewScanner(path, Options{Window: 3}), "index": idx}

	tests := []struct {
		terms []string
		want  []string
	}{
		{[]string{"full"}, []string{}},
		{[]string{"favorite", "count"}, []string{}},
		{[]string{"id_str"}, []string{}},
		{[]string{"text"}, []string{"22"}},
		{[]string{"launching"}, []string{"21"}},
	}
	for name, m := range matchers {
		for _, tt := range tests {
			t.Run(name+"/"+strings.Join(tt.terms, "+"), func(t *testing.T) {
				got := m.Match(context.Background(), tt.terms).IDs()
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("IDs() = %v, want %v", got, tt.want)
				}
			})
		}
	}
}

func TestSearchable(t *testing.T) {
	tests := []struct{ in, want string }{
		{`      "full_text" : "Hello",`, `        "hello",`},
		{`"text": "a \"quoted\": b"`, `  "a \"quoted\": b"`},
		{`no keys here`, `no keys here`},
	}
	for _, tt := range tests {
		if got := searchable(tt.in); got != tt.want {
			t.Errorf("searchable(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpenIndexMissingFile(t *testing.T) {
	if _, err := OpenIndex(filepath.Join(t.TempDir(), "nope"), Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNop(t *testing.T) {
	if got := (Nop{}).Match(context.Background(), []string{"x"}); len(got) != 0 {
		t.Errorf("Nop matched %v", got.IDs())
	}
}
