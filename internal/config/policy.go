package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds the tunables that are configuration rather than code: the
// per-kind citation templates and the confidence blend weights.
type Policy struct {
	CitationTemplates map[string]string `yaml:"citation_templates"`
	ConfidenceWeights BlendWeights      `yaml:"confidence_weights"`
}

// BlendWeights are normalized before use; zero values fall back to the
// defaults below.
type BlendWeights struct {
	Model     float64 `yaml:"model"`
	Relevance float64 `yaml:"relevance"`
	Freshness float64 `yaml:"freshness"`
}

// DefaultPolicy covers the known document kinds. Template placeholders:
// {title}, {issuing_body}, {date}, {locator}.
func DefaultPolicy() Policy {
	return Policy{
		CitationTemplates: map[string]string{
			"statute":  "{title}",
			"ruling":   "{title}, {issuing_body} ({date})",
			"registry": "{title} — {issuing_body}, {locator}",
			"default":  "{title} ({issuing_body})",
		},
		ConfidenceWeights: BlendWeights{
			Model:     0.5,
			Relevance: 0.3,
			Freshness: 0.2,
		},
	}
}

// LoadPolicy reads the YAML policy file when a path is configured and
// merges it over the defaults. A missing path yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var loaded Policy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	for kind, tmpl := range loaded.CitationTemplates {
		if tmpl != "" {
			policy.CitationTemplates[kind] = tmpl
		}
	}
	if loaded.ConfidenceWeights != (BlendWeights{}) {
		policy.ConfidenceWeights = loaded.ConfidenceWeights
	}
	return policy, nil
}

// Normalized returns weights scaled to sum to 1. All-zero weights return
// the defaults.
func (w BlendWeights) Normalized() BlendWeights {
	sum := w.Model + w.Relevance + w.Freshness
	if sum <= 0 {
		return DefaultPolicy().ConfidenceWeights
	}
	return BlendWeights{
		Model:     w.Model / sum,
		Relevance: w.Relevance / sum,
		Freshness: w.Freshness / sum,
	}
}
