package analytics

import "time"

type EventType string

const (
	EventSelection EventType = "selection"
	EventRefresh   EventType = "corpus_refresh"
)

// SelectionEvent records one context selection.
type SelectionEvent struct {
	Type          EventType `json:"type"`
	Query         string    `json:"query"`
	Terms         []string  `json:"terms"`
	Candidates    int       `json:"candidates"`
	RawMatches    int       `json:"raw_matches"`
	Selected      int       `json:"selected"`
	Outcome       string    `json:"outcome"`
	CorpusVersion int64     `json:"corpus_version"`
	LatencyMs     int64     `json:"latency_ms"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// RefreshEvent records a published corpus snapshot.
type RefreshEvent struct {
	Type      EventType `json:"type"`
	Reason    string    `json:"reason"`
	Version   int64     `json:"version"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

// envelope reads only the discriminator of an encoded event.
type envelope struct {
	Type EventType `json:"type"`
}
