package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/echo-social/echonet/pkg/kafka"
)

// AggregatedStats is the usage summary served at /api/v1/analytics.
type AggregatedStats struct {
	TotalSearches   int64       `json:"total_searches"`
	TotalPostsIndex int64       `json:"total_posts_indexed"`
	CacheHits       int64       `json:"cache_hits"`
	CacheMisses     int64       `json:"cache_misses"`
	ZeroResultCount int64       `json:"zero_result_count"`
	AvgLatencyMs    float64     `json:"avg_latency_ms"`
	P50LatencyMs    int64       `json:"p50_latency_ms"`
	P95LatencyMs    int64       `json:"p95_latency_ms"`
	P99LatencyMs    int64       `json:"p99_latency_ms"`
	TopTerms        []TermCount `json:"top_terms"`
	ZeroResultTerms []TermCount `json:"zero_result_terms"`
	SearchesPerMin  float64     `json:"searches_per_minute"`
}

type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Aggregator consumes analytics events from Kafka and folds them into
// in-memory counters and latency percentiles.
type Aggregator struct {
	mu              sync.RWMutex
	totalSearches   atomic.Int64
	totalIndexed    atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	zeroResults     atomic.Int64
	latencies       []int64
	termCounts      map[string]int64
	zeroResultTerms map[string]int64
	startTime       time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:       make([]int64, 0, 10000),
		termCounts:      make(map[string]int64),
		zeroResultTerms: make(map[string]int64),
		startTime:       time.Now(),
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns the Kafka message handler that feeds the aggregator.
// Undecodable events are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err == nil && event.Type == EventSearch {
			agg.recordSearchEvent(event)
			return nil
		}
		idxEvent, idxErr := kafka.DecodeJSON[PostIndexedEvent](value)
		if idxErr == nil && idxEvent.Type == EventIndexPost {
			agg.recordIndexEvent(idxEvent)
			return nil
		}
		agg.logger.Error("failed to decode analytics event", "error", err)
		return nil
	}
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)

	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Returned == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.termCounts[event.Term]++
	if event.Returned == 0 {
		a.zeroResultTerms[event.Term]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordIndexEvent(event PostIndexedEvent) {
	a.totalIndexed.Add(1)
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		TotalPostsIndex: a.totalIndexed.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopTerms = topN(a.termCounts, 10)
	stats.ZeroResultTerms = topN(a.zeroResultTerms, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.SearchesPerMin = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (len(sorted)*p + 99) / 100
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []TermCount {
	out := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		out = append(out, TermCount{Term: term, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
