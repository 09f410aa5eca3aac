package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/errors"
)

// Timestamp layouts seen in exports, tried in order.
var timeLayouts = []string{
	time.RubyDate, // "Wed Oct 10 20:19:24 +0000 2018"
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

const repostPrefix = "RT @"

// ArchiveSource reads a social-media export file. It accepts the
// `window.YTD.tweets.part0 = [...]` script form as well as a bare JSON array,
// with each element either wrapped in a "tweet" object or flat.
type ArchiveSource struct {
	path   string
	owner  string
	logger *slog.Logger
}

// NewArchiveSource creates a source for the export at path. owner is the
// account handle used for the author field and permalink URLs.
func NewArchiveSource(path, owner string) *ArchiveSource {
	return &ArchiveSource{
		path:   path,
		owner:  strings.TrimPrefix(owner, "@"),
		logger: slog.Default().With("component", "archive-source", "path", path),
	}
}

func (s *ArchiveSource) Name() string { return "archive" }

// Path returns the export file path.
func (s *ArchiveSource) Path() string { return s.path }

// Load reads and parses the whole export. A missing or unreadable file wraps
// ErrSourceUnavailable; unparseable content wraps ErrMalformedExport.
func (s *ArchiveSource) Load(ctx context.Context) ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrSourceUnavailable, s.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, skipped, err := ParseArchive(data, s.owner)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}
	s.logger.Info("archive parsed", "records", len(records), "skipped", skipped)
	return records, nil
}

// ParseArchive decodes export bytes into records, newest-first. Reposts and
// entries carrying neither an identifier nor text are skipped and counted.
func ParseArchive(data []byte, owner string) (records []Record, skipped int, err error) {
	payload := stripAssignment(data)
	if len(payload) == 0 {
		return nil, 0, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", apperrors.ErrMalformedExport, err)
	}

	owner = strings.TrimPrefix(owner, "@")
	records = make([]Record, 0, len(entries))
	for i, raw := range entries {
		p, err := decodeEntry(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: entry %d: %v", apperrors.ErrMalformedExport, i, err)
		}
		text := p.text()
		id := p.id()
		if strings.HasPrefix(text, repostPrefix) || (id == "" && text == "") {
			skipped++
			continue
		}
		records = append(records, p.record(id, text, owner))
	}
	SortNewestFirst(records)
	return records, skipped, nil
}

// stripAssignment drops a leading `name = ` and a trailing `;` so that the
// script form of the export decodes as plain JSON.
func stripAssignment(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '[' {
		return data
	}
	if eq := bytes.IndexByte(data, '='); eq >= 0 {
		data = bytes.TrimSpace(data[eq+1:])
	}
	return bytes.TrimSpace(bytes.TrimSuffix(data, []byte(";")))
}

type exportPost struct {
	IDStr         string     `json:"id_str"`
	ID            flexString `json:"id"`
	FullText      string     `json:"full_text"`
	Text          string     `json:"text"`
	CreatedAt     string     `json:"created_at"`
	FavoriteCount flexInt    `json:"favorite_count"`
	LikeCount     flexInt    `json:"like_count"`
	RetweetCount  flexInt    `json:"retweet_count"`
	RepostCount   flexInt    `json:"repost_count"`
	ReplyCount    flexInt    `json:"reply_count"`
	URL           string     `json:"url"`
	User          *struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
}

func decodeEntry(raw json.RawMessage) (*exportPost, error) {
	var wrapped struct {
		Tweet *exportPost `json:"tweet"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Tweet != nil {
		return wrapped.Tweet, nil
	}
	var flat exportPost
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	return &flat, nil
}

func (p *exportPost) id() string {
	if p.IDStr != "" {
		return p.IDStr
	}
	return string(p.ID)
}

func (p *exportPost) text() string {
	if p.FullText != "" {
		return p.FullText
	}
	return p.Text
}

func (p *exportPost) record(id, text, owner string) Record {
	author := owner
	if p.User != nil && p.User.ScreenName != "" {
		author = p.User.ScreenName
	}
	url := p.URL
	if url == "" && author != "" && id != "" {
		url = fmt.Sprintf("https://x.com/%s/status/%s", author, id)
	}
	return Record{
		ID:        id,
		Text:      text,
		CreatedAt: parseTime(p.CreatedAt),
		Author:    author,
		Likes:     int(max(p.FavoriteCount, p.LikeCount)),
		Reposts:   int(max(p.RetweetCount, p.RepostCount)),
		Replies:   int(p.ReplyCount),
		URL:       url,
	}
}

// parseTime returns the zero time for empty or unrecognised timestamps.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// flexInt accepts a JSON number, a numeric string, or null. Anything else
// decodes as 0.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}
