package pipeline

import (
	"fmt"

	"github.com/tomoru1741/Bloxd-Tools/internal/extractor"
)

// DefaultManifestURL is the live game's asset manifest.
const DefaultManifestURL = "https://bloxd.io/asset-manifest.json"

// Config holds all configuration for one extraction run.
type Config struct {
	// Target
	ManifestURL string      `yaml:"manifest_url" json:"manifest_url"`
	Chunks      []ChunkPlan `yaml:"chunks" json:"chunks"`

	// Strategy control
	Cascade    []string       `yaml:"cascade" json:"cascade"`
	Thresholds map[string]int `yaml:"thresholds" json:"thresholds"`
	Policy     Policy         `yaml:"policy" json:"policy"`
}

// ChunkPlan names one chunk and the strategies to try on it.
// Empty Strategies means the full cascade.
type ChunkPlan struct {
	ChunkID    string   `yaml:"chunk_id" json:"chunk_id"`
	Strategies []string `yaml:"strategies,omitempty" json:"strategies,omitempty"`
}

// Policy decides which strategy result a chunk keeps.
type Policy string

const (
	// PolicyFirstPlausible keeps the first result above its threshold.
	PolicyFirstPlausible Policy = "first-plausible"
	// PolicyLongest runs every strategy and keeps the longest plausible result.
	PolicyLongest Policy = "longest"
)

// defaultThreshold applies to strategies without an explicit entry.
const defaultThreshold = 20

// DefaultConfig returns the chunk plan and thresholds used against the live game.
func DefaultConfig() *Config {
	return &Config{
		ManifestURL: DefaultManifestURL,
		Chunks: []ChunkPlan{
			{ChunkID: "3"},
			{ChunkID: "32"},
		},
		Cascade: extractor.DefaultOrder(),
		Thresholds: map[string]int{
			extractor.StrategyAnchor:      100,
			extractor.StrategyHeuristic:   20,
			extractor.StrategyStringArray: 20,
			extractor.StrategyDefinitions: 20,
		},
		Policy: PolicyFirstPlausible,
	}
}

// Threshold returns the plausibility threshold for strategy.
// A result is plausible when its length is strictly greater.
func (c *Config) Threshold(strategy string) int {
	if t, ok := c.Thresholds[strategy]; ok {
		return t
	}
	return defaultThreshold
}

// ChunkIDs returns the planned chunk ids in order.
func (c *Config) ChunkIDs() []string {
	ids := make([]string, len(c.Chunks))
	for i, ch := range c.Chunks {
		ids[i] = ch.ChunkID
	}
	return ids
}

// Validate checks the plan against the strategies known to reg.
func (c *Config) Validate(reg *extractor.Registry) error {
	if c.ManifestURL == "" {
		return fmt.Errorf("manifest_url is required")
	}
	if len(c.Chunks) == 0 {
		return fmt.Errorf("at least one chunk is required")
	}
	switch c.Policy {
	case PolicyFirstPlausible, PolicyLongest:
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}

	check := func(name string) error {
		if reg == nil {
			return nil
		}
		if _, ok := reg.Get(name); !ok {
			return fmt.Errorf("unknown strategy %q", name)
		}
		return nil
	}
	for _, s := range c.Cascade {
		if err := check(s); err != nil {
			return err
		}
	}
	for _, ch := range c.Chunks {
		if ch.ChunkID == "" {
			return fmt.Errorf("chunk id is required")
		}
		for _, s := range ch.Strategies {
			if err := check(s); err != nil {
				return fmt.Errorf("chunk %s: %w", ch.ChunkID, err)
			}
		}
	}
	for s, t := range c.Thresholds {
		if t < 0 {
			return fmt.Errorf("threshold for %q must not be negative", s)
		}
	}
	return nil
}
