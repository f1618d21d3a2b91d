package pipeline

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/merge"
)

// DefaultLimit applies to bridges and merges that leave limit unset.
const DefaultLimit = 10

// RepConfig declares how one representation is built.
type RepConfig struct {
	Encoder string
	Enabled bool
	// Store persists the built index and routes lookups through the index cache.
	Store   bool
	Options map[string]any
}

// Option returns a string option, or def when it is missing or not a string.
func (c RepConfig) Option(name, def string) string {
	if v, ok := c.Options[name].(string); ok {
		return v
	}
	return def
}

// IntOption returns an integer option, or def when it is missing or not a number.
func (c RepConfig) IntOption(name string, def int) int {
	switch v := c.Options[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// BridgeConfig declares one retrieval path between two representations.
type BridgeConfig struct {
	Name     string
	RepNodes []rep.Key
	Limit    int
	Enabled  bool
	MatchFn  string
	EvalFn   string
}

// EffectiveLimit returns Limit, or DefaultLimit when unset.
func (b BridgeConfig) EffectiveLimit() int {
	if b.Limit > 0 {
		return b.Limit
	}
	return DefaultLimit
}

// MergeConfig declares how bridge results are fused.
type MergeConfig struct {
	Name    string
	Method  merge.Method
	Bridges []string
	// Expr names the bridge whose list an expr merge returns; defaults to the single member bridge.
	Expr  string
	Limit int
}

// EffectiveLimit returns Limit, or DefaultLimit when unset.
func (m MergeConfig) EffectiveLimit() int {
	if m.Limit > 0 {
		return m.Limit
	}
	return DefaultLimit
}

// Config is the read-only pipeline configuration.
type Config struct {
	// Representations maps field path -> representation name -> config.
	Representations map[string]map[string]RepConfig
	Bridges         map[string]BridgeConfig
	// Merges keeps declaration order.
	Merges        []MergeConfig
	EnabledMerges []string
	DocLeafType   string
}

// Representation returns the config of k.
func (c *Config) Representation(k rep.Key) (RepConfig, bool) {
	byName, ok := c.Representations[k.FieldPath()]
	if !ok {
		return RepConfig{}, false
	}
	rc, ok := byName[k.Name()]
	return rc, ok
}

// Merge returns the merge declared under name.
func (c *Config) Merge(name string) (MergeConfig, bool) {
	for _, m := range c.Merges {
		if m.Name == name {
			return m, true
		}
	}
	return MergeConfig{}, false
}

// SectionFor names the configuration section expected to define k.
func SectionFor(k rep.Key) string {
	return fmt.Sprintf("representations[%q][%q]", k.FieldPath(), k.Name())
}
