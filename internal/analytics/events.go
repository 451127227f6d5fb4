package analytics

import "time"

type EventType string

const (
	EventSearch    EventType = "search"
	EventIndexPost EventType = "index_post"
)

// SearchEvent records one search request, cache outcome included.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Term      string    `json:"term"`
	Returned  int       `json:"returned"`
	CacheHit  bool      `json:"cache_hit"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// PostIndexedEvent records one post entering the inverted index.
type PostIndexedEvent struct {
	Type       EventType `json:"type"`
	PostID     string    `json:"post_id"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}
