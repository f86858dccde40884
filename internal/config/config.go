// Package config loads the bloxdcheck configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tomoru1741/Bloxd-Tools/internal/dictionary"
	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
	"github.com/tomoru1741/Bloxd-Tools/internal/fetcher"
	"github.com/tomoru1741/Bloxd-Tools/internal/pipeline"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
	"gopkg.in/yaml.v3"
)

// Transport modes.
const (
	TransportHTTP    = "http"
	TransportBrowser = "browser"
)

// Config is the full configuration file.
type Config struct {
	Pipeline   pipeline.Config    `yaml:"pipeline"`
	Fetcher    FetcherConfig      `yaml:"fetcher"`
	Dictionary DictionaryConfig   `yaml:"dictionary"`
	Session    SessionConfig      `yaml:"session"`
	Limits     extractor.Limits   `yaml:"limits"`
	Catalog    *extractor.Catalog `yaml:"catalog,omitempty"`
	Storage    StorageConfig      `yaml:"storage"`
	Server     ServerConfig       `yaml:"server"`
	Log        LogConfig          `yaml:"log"`
}

// FetcherConfig selects the transport and the relay lists.
type FetcherConfig struct {
	Transport        string          `yaml:"transport"`
	Timeout          time.Duration   `yaml:"timeout"`
	UserAgent        string          `yaml:"user_agent"`
	Proxy            string          `yaml:"proxy"`
	Headers          []string        `yaml:"headers"`
	Relays           []fetcher.Relay `yaml:"relays"`
	DictionaryRelays []fetcher.Relay `yaml:"dictionary_relays"`
}

type DictionaryConfig struct {
	URL string `yaml:"url"`
	// File, when set, is read instead of fetching URL.
	File string `yaml:"file"`
}

type SessionConfig struct {
	LoadMode session.LoadMode `yaml:"load_mode"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: *pipeline.DefaultConfig(),
		Fetcher: FetcherConfig{
			Transport:        TransportHTTP,
			Timeout:          30 * time.Second,
			UserAgent:        "bloxdcheck/1.0",
			Relays:           fetcher.DefaultRelays(),
			DictionaryRelays: fetcher.DefaultDictionaryRelays(),
		},
		Dictionary: DictionaryConfig{URL: dictionary.DefaultURL},
		Session:    SessionConfig{LoadMode: session.LoadConcurrent},
		Limits:     extractor.DefaultLimits(),
		Storage:    StorageConfig{Path: "bloxdcheck.db"},
		Server: ServerConfig{
			Listen:         ":8080",
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFromFile reads path over the defaults and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildCatalog overlays the configured catalog sections on the embedded one.
func (c *Config) BuildCatalog() (*extractor.Catalog, error) {
	cat := extractor.DefaultCatalog().Merge(c.Catalog)
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// BuildRegistry returns the strategy registry for this configuration.
func (c *Config) BuildRegistry() (*extractor.Registry, error) {
	cat, err := c.BuildCatalog()
	if err != nil {
		return nil, err
	}
	return extractor.NewRegistry(cat, c.Limits)
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs []error

	reg, err := c.BuildRegistry()
	if err != nil {
		errs = append(errs, err)
	}
	if err := c.Pipeline.Validate(reg); err != nil {
		errs = append(errs, fmt.Errorf("pipeline: %w", err))
	}

	switch c.Fetcher.Transport {
	case TransportHTTP, TransportBrowser:
	default:
		errs = append(errs, fmt.Errorf("fetcher: unknown transport %q", c.Fetcher.Transport))
	}
	if c.Fetcher.Timeout < 0 {
		errs = append(errs, errors.New("fetcher: timeout must not be negative"))
	}
	if err := validateRelays("relays", c.Fetcher.Relays); err != nil {
		errs = append(errs, err)
	}
	if err := validateRelays("dictionary_relays", c.Fetcher.DictionaryRelays); err != nil {
		errs = append(errs, err)
	}

	if c.Dictionary.URL == "" && c.Dictionary.File == "" {
		errs = append(errs, errors.New("dictionary: url or file is required"))
	}
	switch c.Session.LoadMode {
	case session.LoadConcurrent, session.LoadSequential:
	default:
		errs = append(errs, fmt.Errorf("session: unknown load mode %q", c.Session.LoadMode))
	}

	seq := c.Limits.Sequential
	if seq.MaxConsecutiveFailures <= 0 || seq.MaxEntries <= 0 || seq.MinEntries <= 0 {
		errs = append(errs, errors.New("limits: sequential limits must be positive"))
	}
	if r := c.Limits.StringArray.MinStringRate; r < 0 || r > 1 {
		errs = append(errs, errors.New("limits: min_string_rate must be between 0 and 1"))
	}
	if c.Limits.Definitions.Lookback <= 0 {
		errs = append(errs, errors.New("limits: definitions lookback must be positive"))
	}

	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server: listen address is required"))
	}
	return errors.Join(errs...)
}

func validateRelays(field string, relays []fetcher.Relay) error {
	if len(relays) == 0 {
		return fmt.Errorf("fetcher: %s must not be empty", field)
	}
	for _, r := range relays {
		if r.Name == "" {
			return fmt.Errorf("fetcher: %s entry without a name", field)
		}
		if !strings.Contains(r.Template, "{url}") && !strings.Contains(r.Template, "{raw}") {
			return fmt.Errorf("fetcher: relay %q template needs {url} or {raw}", r.Name)
		}
	}
	return nil
}
