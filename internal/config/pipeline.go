package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragpipe/internal/domain"
	"github.com/kailas-cloud/ragpipe/internal/domain/document"
	"github.com/kailas-cloud/ragpipe/internal/domain/pipeline"
	"github.com/kailas-cloud/ragpipe/internal/domain/rep"
	"github.com/kailas-cloud/ragpipe/internal/domain/search/merge"
)

// pipelineFile mirrors the pipeline YAML document.
type pipelineFile struct {
	Representations map[string]map[string]repEntry `yaml:"representations"`
	Bridges         map[string]bridgeEntry         `yaml:"bridges"`
	Merges          yaml.Node                      `yaml:"merges"`
	EnabledMerges   stringList                     `yaml:"enabled_merges"`
	DocLeafType     string                         `yaml:"doc_leaf_type"`
}

type repEntry struct {
	Encoder encoderEntry   `yaml:"encoder"`
	Enabled *bool          `yaml:"enabled"`
	Store   bool           `yaml:"store"`
	Options map[string]any `yaml:",inline"`
}

// encoderEntry accepts "minilm" or {name: minilm, ...options}.
type encoderEntry struct {
	Name    string
	Options map[string]any
}

func (e *encoderEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = value.Value
		return nil
	}
	var m map[string]any
	if err := value.Decode(&m); err != nil {
		return fmt.Errorf("line %d: encoder must be a name or a mapping: %w", value.Line, err)
	}
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return fmt.Errorf("line %d: encoder mapping needs a name", value.Line)
	}
	delete(m, "name")
	e.Name = name
	e.Options = m
	return nil
}

type bridgeEntry struct {
	RepNodes stringList `yaml:"repnodes"`
	Limit    int        `yaml:"limit"`
	Enabled  *bool      `yaml:"enabled"`
	MatchFn  string     `yaml:"matchfn"`
	EvalFn   string     `yaml:"evalfn"`
}

type mergeEntry struct {
	Method  string     `yaml:"method"`
	Bridges stringList `yaml:"bridges"`
	Expr    string     `yaml:"expr"`
	Limit   int        `yaml:"limit"`
}

// stringList accepts a YAML sequence or a comma-separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = nil
		for _, part := range strings.Split(value.Value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				*l = append(*l, p)
			}
		}
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a list or a comma-separated string", value.Line)
	}
}

// LoadPipeline reads a pipeline definition from path.
func LoadPipeline(path string) (*pipeline.Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline %s: %w", path, err)
	}
	cfg, err := ParsePipeline(data)
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", path, err)
	}
	return cfg, nil
}

// ParsePipeline decodes a pipeline definition. Merges keep their declaration order;
// representations and bridges are enabled unless stated otherwise.
func ParsePipeline(data []byte) (*pipeline.Config, error) {
	data, err := expandEnv(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	var f pipelineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse pipeline: %v", domain.ErrConfiguration, err)
	}

	cfg := &pipeline.Config{
		Representations: make(map[string]map[string]pipeline.RepConfig, len(f.Representations)),
		Bridges:         make(map[string]pipeline.BridgeConfig, len(f.Bridges)),
		EnabledMerges:   f.EnabledMerges,
		DocLeafType:     f.DocLeafType,
	}

	if f.DocLeafType != "" && !document.LeafType(f.DocLeafType).IsValid() {
		return nil, fmt.Errorf("%w: doc_leaf_type %q is not valid", domain.ErrConfiguration, f.DocLeafType)
	}

	for fieldPath, byName := range f.Representations {
		out := make(map[string]pipeline.RepConfig, len(byName))
		for name, e := range byName {
			if _, err := rep.New(fieldPath, name); err != nil {
				return nil, fmt.Errorf("%w: representations.%s.%s: %v", domain.ErrConfiguration, fieldPath, name, err)
			}
			if e.Encoder.Name == "" {
				return nil, fmt.Errorf("%w: representations.%s.%s.encoder is required",
					domain.ErrConfiguration, fieldPath, name)
			}
			out[name] = pipeline.RepConfig{
				Encoder: e.Encoder.Name,
				Enabled: e.Enabled == nil || *e.Enabled,
				Store:   e.Store,
				Options: mergeOptions(e.Encoder.Options, e.Options),
			}
		}
		cfg.Representations[fieldPath] = out
	}

	for name, e := range f.Bridges {
		nodes := make([]rep.Key, 0, len(e.RepNodes))
		for _, s := range e.RepNodes {
			k, err := rep.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("%w: bridges.%s.repnodes: %v", domain.ErrConfiguration, name, err)
			}
			nodes = append(nodes, k)
		}
		cfg.Bridges[name] = pipeline.BridgeConfig{
			Name:     name,
			RepNodes: nodes,
			Limit:    e.Limit,
			Enabled:  e.Enabled == nil || *e.Enabled,
			MatchFn:  e.MatchFn,
			EvalFn:   e.EvalFn,
		}
	}

	merges, err := parseMerges(&f.Merges)
	if err != nil {
		return nil, err
	}
	cfg.Merges = merges

	return cfg, nil
}

// parseMerges walks the merges mapping node so declaration order survives decoding.
func parseMerges(node *yaml.Node) ([]pipeline.MergeConfig, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: merges must be a mapping of name to merge",
			domain.ErrConfiguration, node.Line)
	}

	out := make([]pipeline.MergeConfig, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return nil, fmt.Errorf("%w: merge %q declared twice", domain.ErrConfiguration, name)
		}
		seen[name] = true

		var e mergeEntry
		if err := node.Content[i+1].Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: merges.%s: %v", domain.ErrConfiguration, name, err)
		}
		out = append(out, pipeline.MergeConfig{
			Name:    name,
			Method:  merge.Method(e.Method),
			Bridges: e.Bridges,
			Expr:    e.Expr,
			Limit:   e.Limit,
		})
	}
	return out, nil
}

func mergeOptions(encoder, inline map[string]any) map[string]any {
	if len(encoder) == 0 && len(inline) == 0 {
		return nil
	}
	out := make(map[string]any, len(encoder)+len(inline))
	for k, v := range inline {
		out[k] = v
	}
	for k, v := range encoder {
		out[k] = v
	}
	return out
}
