package plugin

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Failure taxonomy. Match with errors.Is.
var (
	// ErrProxyExhausted means every configured relay failed for one URL.
	ErrProxyExhausted = errors.New("all relays failed")
	// ErrManifestChunkNotFound means no manifest key matched a chunk id.
	ErrManifestChunkNotFound = errors.New("chunk not found in manifest")
	// ErrParseNoResult means a strategy found nothing plausible.
	ErrParseNoResult = errors.New("no plausible result")
	// ErrNotFound means no chunk/strategy combination produced a list.
	ErrNotFound = errors.New("item list not found")
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageManifest   Stage = "manifest"
	StageChunkFetch Stage = "chunk-fetch"
	StageParse      Stage = "parse"
	StageDictionary Stage = "dictionary"
)

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage recorded in err, or "" when there is none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Attempt records one relay try.
type Attempt struct {
	Relay      string
	URL        string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// ProxyExhaustedError lists every failed relay attempt for Target.
type ProxyExhaustedError struct {
	Target   string
	Attempts []Attempt
}

func (e *ProxyExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrProxyExhausted.Error(), e.Target)
	if last := e.Last(); last != nil {
		fmt.Fprintf(&b, " (last: %v)", last)
	}
	return b.String()
}

// Last returns the underlying failure of the final attempt.
func (e *ProxyExhaustedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *ProxyExhaustedError) Is(target error) bool { return target == ErrProxyExhausted }

func (e *ProxyExhaustedError) Unwrap() error { return e.Last() }

// StrategyError wraps an internal failure (including a recovered panic) of one strategy.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy %s: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// Diagnose turns a terminal error into an operator-facing explanation that
// says whether to suspect the network layer or an upstream format change.
func Diagnose(err error) string {
	if err == nil {
		return ""
	}
	switch StageOf(err) {
	case StageManifest:
		if errors.Is(err, ErrManifestChunkNotFound) {
			return "manifest structure problem: the asset manifest was fetched but has no key for the planned chunk ids; upstream may have renumbered its chunks (" + err.Error() + ")"
		}
		return "manifest/network problem: the asset manifest could not be fetched or parsed through any relay (" + err.Error() + ")"
	case StageChunkFetch:
		return "network problem: no bundle chunk could be downloaded through any relay (" + err.Error() + ")"
	case StageParse:
		return "parse/structure problem: chunks were downloaded but no strategy recognised an item list; the upstream bundle format may have changed (" + err.Error() + ")"
	case StageDictionary:
		return "dictionary problem: the translation dictionary could not be fetched as JSON through any relay (" + err.Error() + ")"
	}
	if errors.Is(err, ErrProxyExhausted) {
		return "network problem: " + err.Error()
	}
	return err.Error()
}
