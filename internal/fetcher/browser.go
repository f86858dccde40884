package fetcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

// BrowserFetcher uses Rod (headless Chrome) to load relay URLs. Some relays
// answer plain HTTP clients with a bot challenge but serve a real browser.
type BrowserFetcher struct {
	browser     *rod.Browser
	timeout     time.Duration
	pageTimeout time.Duration
	userAgent   string
}

// BrowserFetcherConfig holds configuration for the browser fetcher.
type BrowserFetcherConfig struct {
	Timeout     time.Duration
	PageTimeout time.Duration
	UserAgent   string
}

// NewBrowserFetcher launches headless Chrome and connects to it.
func NewBrowserFetcher(cfg BrowserFetcherConfig) (*BrowserFetcher, error) {
	u, err := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	pageTimeout := cfg.PageTimeout
	if pageTimeout == 0 {
		pageTimeout = 15 * time.Second
	}

	return &BrowserFetcher{
		browser:     browser,
		timeout:     timeout,
		pageTimeout: pageTimeout,
		userAgent:   cfg.UserAgent,
	}, nil
}

func (f *BrowserFetcher) Name() string { return "browser" }

func (f *BrowserFetcher) Fetch(targetURL string) (*plugin.Response, error) {
	start := time.Now()

	resp := &plugin.Response{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: "browser",
		FetchedAt:   start,
	}

	rodPage, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		resp.FetchDuration = time.Since(start)
		return resp, err
	}
	defer rodPage.Close()

	rodPage = rodPage.Timeout(f.timeout)

	if f.userAgent != "" {
		_ = rodPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: f.userAgent,
		})
	}

	// Capture the document status; rod does not expose it on Navigate.
	var status int
	wait := rodPage.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = e.Response.Status
			return true
		}
		return false
	})

	if err := rodPage.Navigate(targetURL); err != nil {
		resp.FetchDuration = time.Since(start)
		return resp, err
	}
	wait()

	if err := rodPage.WaitLoad(); err != nil {
		resp.FetchDuration = time.Since(start)
		return resp, err
	}

	if info, err := rodPage.Info(); err == nil {
		resp.FinalURL = info.URL
	}

	// Chrome wraps text/javascript and JSON documents in a <pre>; innerText
	// gives back the original bytes for both.
	res, err := rodPage.Eval(`() => ({
		contentType: document.contentType,
		title: document.title,
		text: document.body ? document.body.innerText : "",
	})`)
	if err != nil {
		resp.FetchDuration = time.Since(start)
		return resp, err
	}
	contentType := res.Value.Get("contentType").Str()
	body := res.Value.Get("text").Str()

	resp.StatusCode = status
	resp.ContentType = contentType
	resp.Body = []byte(body)
	resp.ResponseSize = len(body)
	resp.FetchDuration = time.Since(start)

	if status != 0 && (status < 200 || status > 299) {
		return resp, fmt.Errorf("status %d", status)
	}
	if status == 0 {
		resp.StatusCode = 200 // best effort: navigation succeeded without a document event
	}
	if err := checkDocument(contentType, res.Value.Get("title").Str()); err != nil {
		return resp, err
	}
	return resp, nil
}

// checkDocument rejects rendered HTML pages. The browser hands back their
// text, so the markup check on the body cannot see them.
func checkDocument(contentType, title string) error {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "text/html", "application/xhtml+xml":
	default:
		return nil
	}
	if title = strings.TrimSpace(title); title != "" {
		return fmt.Errorf("%w: %q", ErrInterstitial, title)
	}
	return ErrInterstitial
}

func (f *BrowserFetcher) Close() error {
	if f.browser != nil {
		return f.browser.Close()
	}
	return nil
}
