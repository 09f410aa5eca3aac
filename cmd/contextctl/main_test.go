package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
)

const export = `window.YTD.tweets.part0 = [
  {"tweet": {"id_str": "1", "full_text": "Ninja launching in 24 hours", "created_at": "Thu Oct 01 09:00:00 +0000 2026", "favorite_count": "40"}},
  {"tweet": {"id_str": "2", "full_text": "coffee thoughts", "created_at": "Wed Sep 30 09:00:00 +0000 2026"}}
]`

func writeExport(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tweets.js")
	if err := os.WriteFile(path, []byte(export), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunQueryText(t *testing.T) {
	path := writeExport(t)
	var out bytes.Buffer
	if err := runQuery([]string{"-archive", path, "-owner", "acme", "ninja", "release", "date"}, &out); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	if !strings.Contains(got, "Posts by @acme") || !strings.Contains(got, "Ninja launching in 24 hours") {
		t.Errorf("unexpected context:\n%s", got)
	}
}

func TestRunQueryJSON(t *testing.T) {
	path := writeExport(t)
	var out bytes.Buffer
	if err := runQuery([]string{"-archive", path, "-owner", "acme", "-json", "ninja"}, &out); err != nil {
		t.Fatal(err)
	}
	var o queryOutput
	if err := json.Unmarshal(out.Bytes(), &o); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if o.Query != "ninja" || o.Candidates == 0 || len(o.Sources) == 0 {
		t.Errorf("output = %+v", o)
	}
	if o.Sources[0] != "https://x.com/acme/status/1" {
		t.Errorf("first source = %q", o.Sources[0])
	}
}

func TestRunStats(t *testing.T) {
	path := writeExport(t)
	var out bytes.Buffer
	if err := runStats([]string{"-archive", path}, &out); err != nil {
		t.Fatal(err)
	}
	var st corpus.Stats
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if !st.Loaded || st.Records != 2 || st.Source != "archive" {
		t.Errorf("stats = %+v", st)
	}
}

func TestRunQueryMissingArchive(t *testing.T) {
	var out bytes.Buffer
	err := runQuery([]string{"-archive", filepath.Join(t.TempDir(), "none.js"), "x"}, &out)
	if err == nil {
		t.Error("expected an error for a missing archive")
	}
}
