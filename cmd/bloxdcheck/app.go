package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tomoru1741/Bloxd-Tools/internal/config"
	"github.com/tomoru1741/Bloxd-Tools/internal/dictionary"
	"github.com/tomoru1741/Bloxd-Tools/internal/fetcher"
	"github.com/tomoru1741/Bloxd-Tools/internal/manifest"
	"github.com/tomoru1741/Bloxd-Tools/internal/metrics"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
)

// app wires the engine for one command invocation.
type app struct {
	cfg        *config.Config
	transport  plugin.Fetcher
	pipeline   *pipeline.Pipeline
	dictionary session.DictionarySource
	metrics    *metrics.Collector
}

func newApp(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer, events chan<- plugin.RunEvent) (*app, error) {
	transport, err := newTransport(cfg.Fetcher)
	if err != nil {
		return nil, fmt.Errorf("start %s transport: %w", cfg.Fetcher.Transport, err)
	}

	collector := metrics.New(reg)
	assets := fetcher.NewProxyFetcher(transport, cfg.Fetcher.Relays,
		fetcher.WithLogger(logger),
		fetcher.WithAttemptObserver(collector.ObserveAttempt))

	registry, err := cfg.BuildRegistry()
	if err != nil {
		transport.Close()
		return nil, err
	}
	plan := cfg.Pipeline
	p := pipeline.New(&plan, manifest.NewResolver(assets, logger), assets, registry,
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(collector),
		pipeline.WithEvents(events))

	var dict session.DictionarySource
	if cfg.Dictionary.File != "" {
		dict = dictionary.FileSource(cfg.Dictionary.File)
	} else {
		dictFetch := fetcher.NewProxyFetcher(transport, cfg.Fetcher.DictionaryRelays,
			fetcher.WithLogger(logger),
			fetcher.WithAttemptObserver(collector.ObserveAttempt))
		dict = dictionary.NewLoader(dictFetch, cfg.Dictionary.URL, logger)
	}

	return &app{
		cfg:        cfg,
		transport:  transport,
		pipeline:   p,
		dictionary: dict,
		metrics:    collector,
	}, nil
}

func (a *app) newSession(logger *zap.Logger, opts ...session.Option) *session.Session {
	opts = append([]session.Option{
		session.WithLogger(logger),
		session.WithLoadMode(a.cfg.Session.LoadMode),
	}, opts...)
	return session.New(a.pipeline, a.dictionary, opts...)
}

func (a *app) Close() error {
	return a.transport.Close()
}

func newTransport(cfg config.FetcherConfig) (plugin.Fetcher, error) {
	switch cfg.Transport {
	case config.TransportBrowser:
		return fetcher.NewBrowserFetcher(fetcher.BrowserFetcherConfig{
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
		})
	default:
		return fetcher.NewHTTPFetcher(fetcher.HTTPFetcherConfig{
			UserAgent:     cfg.UserAgent,
			Timeout:       cfg.Timeout,
			Proxy:         cfg.Proxy,
			CustomHeaders: cfg.Headers,
		}), nil
	}
}
