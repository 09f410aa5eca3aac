package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/errors"
)

const scriptExport = `window.YTD.tweets.part0 = [
  {
    "tweet" : {
      "id_str" : "100",
      "full_text" : "older post",
      "created_at" : "Wed Oct 10 20:19:24 +0000 2018",
      "favorite_count" : "7",
      "retweet_count" : "2"
    }
  },
  {
    "tweet" : {
      "id_str" : "200",
      "full_text" : "Ninja launching in 24 hours",
      "created_at" : "Thu Oct 01 09:00:00 +0000 2026",
      "favorite_count" : 12,
      "retweet_count" : 3,
      "reply_count" : 1
    }
  },
  {
    "tweet" : {
      "id_str" : "300",
      "full_text" : "RT @someone: not mine",
      "created_at" : "Fri Oct 02 09:00:00 +0000 2026"
    }
  }
];`

func TestParseArchiveScriptForm(t *testing.T) {
	records, skipped, err := ParseArchive([]byte(scriptExport), "@acme")
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1 repost", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	first := records[0]
	if first.ID != "200" {
		t.Errorf("records not newest-first: %+v", records)
	}
	if first.Likes != 12 || first.Reposts != 3 || first.Replies != 1 {
		t.Errorf("numeric counters: %+v", first)
	}
	if first.URL != "https://x.com/acme/status/200" || first.Author != "acme" {
		t.Errorf("url/author = %q/%q", first.URL, first.Author)
	}
	want := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Errorf("created_at = %v", first.CreatedAt)
	}
	if records[1].Likes != 7 || records[1].Reposts != 2 || records[1].Replies != 0 {
		t.Errorf("string counters: %+v", records[1])
	}
}

func TestParseArchiveFlatArray(t *testing.T) {
	data := `[
		{"id": 5, "text": "flat one", "created_at": "2026-09-01T10:00:00Z", "like_count": "bad"},
		{"id_str": "6", "text": "flat two", "created_at": "2026-09-02"},
		{"id_str": "6", "text": "duplicate id kept", "created_at": "2026-08-02"}
	]`
	records, _, err := ParseArchive([]byte(data), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3 (duplicates are kept)", len(records))
	}
	if records[0].ID != "6" || records[1].ID != "5" {
		t.Errorf("order = %s, %s", records[0].ID, records[1].ID)
	}
	if records[1].Likes != 0 {
		t.Errorf("unparseable counter should default to 0, got %d", records[1].Likes)
	}
	if records[1].URL != "" {
		t.Errorf("no owner means no permalink, got %q", records[1].URL)
	}
}

func TestParseArchiveEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"empty file", "", 0, false},
		{"empty array", "[]", 0, false},
		{"empty script", "window.YTD.tweets.part0 = []", 0, false},
		{"not json", "window.YTD.tweets.part0 = {oops", 0, true},
		{"element not object", "[1, 2]", 0, true},
		{"entry without id or text", `[{"favorite_count": "1"}]`, 0, false},
		{"unknown timestamp", `[{"id_str": "1", "text": "x", "created_at": "yesterday"}]`, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, _, err := ParseArchive([]byte(tt.data), "")
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrMalformedExport) {
					t.Fatalf("expected ErrMalformedExport, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(records) != tt.want {
				t.Errorf("records = %d, want %d", len(records), tt.want)
			}
		})
	}
}

func TestArchiveSourceLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tweets.js")
	if err := os.WriteFile(path, []byte(scriptExport), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewArchiveSource(path, "acme")
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d", len(records))
	}

	_, err = NewArchiveSource(filepath.Join(dir, "missing.js"), "").Load(context.Background())
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("missing file: expected ErrSourceUnavailable, got %v", err)
	}
}

func TestSnapshotSpan(t *testing.T) {
	a := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := NewSnapshot([]Record{{ID: "1", CreatedAt: b}, {ID: "2", CreatedAt: a}}, nil, "test")
	oldest, newest := snap.Span()
	if !oldest.Equal(a) || !newest.Equal(b) {
		t.Errorf("Span() = %v, %v", oldest, newest)
	}
	var empty *Snapshot
	if o, n := empty.Span(); !o.IsZero() || !n.IsZero() {
		t.Error("nil snapshot span should be zero")
	}
	if (Record{Likes: 1, Reposts: 2, Replies: 3}).Engagement() != 6 {
		t.Error("engagement should sum counters")
	}
}
