package fetcher

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// HTTPFetcher uses Colly for plain HTTP GETs against relay URLs.
type HTTPFetcher struct {
	collector *colly.Collector
	userAgent string
	headers   http.Header
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher.
type HTTPFetcherConfig struct {
	UserAgent       string
	Timeout         time.Duration
	MaxResponseSize int
	Proxy           string
	CustomHeaders   []string
}

// NewHTTPFetcher creates a new Colly-based HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)

	// Relays are public APIs; their robots.txt says nothing about our target.
	c.IgnoreRobotsTxt = true

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	if cfg.Proxy != "" {
		_ = c.SetProxy(cfg.Proxy)
	}

	// 0 lifts colly's default 10MB limit; bundle chunks are larger than that.
	c.MaxBodySize = cfg.MaxResponseSize

	headers := make(http.Header)
	for _, h := range cfg.CustomHeaders {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			headers.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		}
	}

	return &HTTPFetcher{
		collector: c,
		userAgent: cfg.UserAgent,
		headers:   headers,
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) Fetch(targetURL string) (*plugin.Response, error) {
	start := time.Now()

	resp := &plugin.Response{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: "http",
		FetchedAt:   start,
	}

	// Clone the collector for this individual fetch so callbacks don't pile up.
	// Clones carry no callbacks, so headers are attached here.
	c := f.collector.Clone()
	if len(f.headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for key, values := range f.headers {
				r.Headers.Del(key)
				for _, v := range values {
					r.Headers.Add(key, v)
				}
			}
		})
	}

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		resp.StatusCode = r.StatusCode
		resp.Body = r.Body
		resp.ResponseSize = len(r.Body)
		resp.FinalURL = r.Request.URL.String()
		if r.Headers != nil {
			resp.ContentType = r.Headers.Get("Content-Type")
			resp.Headers = make(http.Header)
			for key, values := range *r.Headers {
				for _, v := range values {
					resp.Headers.Add(key, v)
				}
			}
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			resp.StatusCode = r.StatusCode
			if r.Request != nil {
				resp.FinalURL = r.Request.URL.String()
			}
		}
	})

	err := c.Visit(targetURL)
	c.Wait()

	resp.FetchDuration = time.Since(start)

	if fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return resp, fetchErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, fmt.Errorf("status %d", resp.StatusCode)
	}

	return resp, nil
}

func (f *HTTPFetcher) Close() error {
	return nil
}
