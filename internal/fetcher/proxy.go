package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
)

// Relay rewrites a target URL into a third-party relay URL.
// Template placeholders: {url} is the query-escaped target, {raw} the target verbatim.
type Relay struct {
	Name     string `yaml:"name" json:"name"`
	Template string `yaml:"template" json:"template"`
}

// Rewrite returns the relay URL for target.
func (r Relay) Rewrite(target string) string {
	out := strings.ReplaceAll(r.Template, "{url}", url.QueryEscape(target))
	return strings.ReplaceAll(out, "{raw}", target)
}

// DefaultRelays is the relay order used for game assets.
func DefaultRelays() []Relay {
	return []Relay{
		{Name: "codetabs", Template: "https://api.codetabs.com/v1/proxy?quest={url}"},
		{Name: "allorigins", Template: "https://api.allorigins.win/raw?url={url}"},
		{Name: "corsproxy", Template: "https://corsproxy.io/?{url}"},
	}
}

// DefaultDictionaryRelays is the relay order used for the wiki dictionary.
func DefaultDictionaryRelays() []Relay {
	return []Relay{
		{Name: "allorigins", Template: "https://api.allorigins.win/raw?url={url}"},
		{Name: "codetabs", Template: "https://api.codetabs.com/v1/proxy?quest={url}"},
		{Name: "corsproxy", Template: "https://corsproxy.io/?{url}"},
		{Name: "cors-anywhere", Template: "https://cors-anywhere.herokuapp.com/{raw}"},
	}
}

// Expect says what kind of body the caller wants back.
type Expect int

const (
	ExpectText Expect = iota
	ExpectJSON
)

// ErrInterstitial is returned when a relay answers with an HTML page.
var ErrInterstitial = errors.New("relay returned an HTML page")

// ProxyFetcher walks an ordered relay list until one returns usable content.
// Attempts are strictly sequential, one per relay, no retries.
type ProxyFetcher struct {
	transport plugin.Fetcher
	relays    []Relay
	logger    *zap.Logger
	onAttempt func(plugin.Attempt)
}

// ProxyOption configures a ProxyFetcher.
type ProxyOption func(*ProxyFetcher)

// WithLogger sets the logger used for per-relay failures.
func WithLogger(l *zap.Logger) ProxyOption {
	return func(p *ProxyFetcher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAttemptObserver registers a callback invoked after every relay attempt.
func WithAttemptObserver(fn func(plugin.Attempt)) ProxyOption {
	return func(p *ProxyFetcher) { p.onAttempt = fn }
}

// NewProxyFetcher creates a relay walker over transport.
func NewProxyFetcher(transport plugin.Fetcher, relays []Relay, opts ...ProxyOption) *ProxyFetcher {
	p := &ProxyFetcher{
		transport: transport,
		relays:    relays,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Relays returns the configured relay order.
func (p *ProxyFetcher) Relays() []Relay { return p.relays }

// Fetch returns the first acceptable response for target. When every relay
// fails it returns a *plugin.ProxyExhaustedError listing all attempts.
func (p *ProxyFetcher) Fetch(ctx context.Context, target string, expect Expect) (*plugin.Response, error) {
	exhausted := &plugin.ProxyExhaustedError{Target: target}

	for _, relay := range p.relays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		relayURL := relay.Rewrite(target)
		p.logger.Debug("Trying relay", zap.String("relay", relay.Name), zap.String("url", relayURL))

		start := time.Now()
		resp, err := p.transport.Fetch(relayURL)
		if err == nil {
			err = checkBody(resp, expect)
		}

		attempt := plugin.Attempt{
			Relay:    relay.Name,
			URL:      relayURL,
			Duration: time.Since(start),
			Err:      err,
		}
		if resp != nil {
			attempt.StatusCode = resp.StatusCode
		}
		if p.onAttempt != nil {
			p.onAttempt(attempt)
		}

		if err == nil {
			resp.Relay = relay.Name
			return resp, nil
		}

		p.logger.Warn("Relay failed",
			zap.String("relay", relay.Name),
			zap.String("target", target),
			zap.Int("status", attempt.StatusCode),
			zap.Error(err))
		exhausted.Attempts = append(exhausted.Attempts, attempt)
	}

	return nil, exhausted
}

// FetchJSON fetches target and decodes the body into v.
func (p *ProxyFetcher) FetchJSON(ctx context.Context, target string, v any) (*plugin.Response, error) {
	resp, err := p.Fetch(ctx, target, ExpectJSON)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return resp, fmt.Errorf("decode %s: %w", target, err)
	}
	return resp, nil
}

// checkBody rejects relay error pages and, for JSON, undecodable bodies.
func checkBody(resp *plugin.Response, expect Expect) error {
	if resp == nil {
		return errors.New("empty response")
	}
	if resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if IsHTMLDocument(resp.Body) {
		if title := interstitialTitle(resp.Body); title != "" {
			return fmt.Errorf("%w: %q", ErrInterstitial, title)
		}
		return ErrInterstitial
	}
	if expect == ExpectJSON && !json.Valid(resp.Body) {
		return errors.New("body is not valid JSON")
	}
	return nil
}

// IsHTMLDocument reports whether body starts like an HTML page.
func IsHTMLDocument(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n\ufeff")
	if len(trimmed) > 16 {
		trimmed = trimmed[:16]
	}
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype")) || bytes.HasPrefix(lower, []byte("<html"))
}

// interstitialTitle pulls the <title> out of a relay error page for diagnostics.
func interstitialTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if len(title) > 120 {
		title = title[:120]
	}
	return title
}
