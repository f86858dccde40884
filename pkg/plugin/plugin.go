// Package plugin defines the public contracts of the bundle miner.
// External tools can import this package to write custom strategies,
// transports, or run-event consumers without forking the project.
package plugin

import (
	"net/http"
	"time"
)

// ---------- Core Data Types ----------

// Response is the body of one successful transport call.
type Response struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	StatusCode    int           `json:"status_code"`
	Headers       http.Header   `json:"-"`
	Body          []byte        `json:"-"`
	ContentType   string        `json:"content_type"`
	FetchedAt     time.Time     `json:"fetched_at"`
	FetchDuration time.Duration `json:"fetch_duration"`
	FetcherUsed   string        `json:"fetcher_used"`
	Relay         string        `json:"relay,omitempty"`
	ResponseSize  int           `json:"response_size"`
}

// Text returns the body as a string.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// ChunkReference locates one bundle chunk named by the asset manifest.
type ChunkReference struct {
	ChunkID string `json:"chunk_id"`
	Key     string `json:"key"`
	URL     string `json:"url"`
}

// Result is the outcome of running one strategy over one chunk of text.
// Exactly one of Names (non-empty) or Err is set.
type Result struct {
	Strategy string   `json:"strategy"`
	Names    []string `json:"names,omitempty"`
	Err      error    `json:"-"`
}

// Found wraps a successful extraction.
func Found(strategy string, names []string) Result {
	if len(names) == 0 {
		return NoResult(strategy)
	}
	return Result{Strategy: strategy, Names: names}
}

// NoResult reports that a strategy found nothing plausible.
func NoResult(strategy string) Result {
	return Result{Strategy: strategy, Err: ErrParseNoResult}
}

// Failed reports that a strategy broke while scanning.
func Failed(strategy string, err error) Result {
	return Result{Strategy: strategy, Err: &StrategyError{Strategy: strategy, Err: err}}
}

// OK reports whether the result carries names.
func (r Result) OK() bool { return r.Err == nil && len(r.Names) > 0 }

// ---------- Event Types ----------

// RunEvent is a real-time event emitted by the extraction pipeline.
type RunEvent struct {
	Type     EventType
	RunID    string
	ChunkID  string
	URL      string
	Strategy string
	Count    int
	Error    error
	Message  string
}

// EventType identifies the kind of event.
type EventType int

const (
	EventRunStarted EventType = iota
	EventManifestResolved
	EventChunkSkipped
	EventChunkFetched
	EventChunkError
	EventStrategyResult
	EventChunkDone
	EventRunFinished
	EventRunFailed
)

func (t EventType) String() string {
	switch t {
	case EventRunStarted:
		return "run_started"
	case EventManifestResolved:
		return "manifest_resolved"
	case EventChunkSkipped:
		return "chunk_skipped"
	case EventChunkFetched:
		return "chunk_fetched"
	case EventChunkError:
		return "chunk_error"
	case EventStrategyResult:
		return "strategy_result"
	case EventChunkDone:
		return "chunk_done"
	case EventRunFinished:
		return "run_finished"
	case EventRunFailed:
		return "run_failed"
	default:
		return "unknown"
	}
}

// ---------- Plugin Interfaces ----------

// Fetcher defines how a single URL is retrieved. One call is one network GET.
type Fetcher interface {
	// Name returns a human-readable identifier for this fetcher.
	Name() string

	// Fetch retrieves the given URL. Non-2xx statuses are errors.
	Fetch(url string) (*Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Strategy recovers an ordered name list from raw bundle text.
// Implementations must be pure: no I/O, no shared mutable state.
type Strategy interface {
	// Name returns a stable identifier (e.g., "anchor", "string-array").
	Name() string

	// Extract scans text and returns Found, NoResult, or Failed.
	Extract(text string) Result
}
