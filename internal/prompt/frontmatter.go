package prompt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Metadata holds optional configuration from YAML frontmatter.
// Pointer fields distinguish "unset" from zero values; accessors below
// fall back to the caller's default when unset.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Model overrides the configured Ollama model for this template.
	Model string `yaml:"model,omitempty"`

	Temperature *float64 `yaml:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p,omitempty"`
	TopK        *int     `yaml:"top_k,omitempty"`

	// MaxTokens limits response length (num_predict in Ollama terms).
	MaxTokens *int `yaml:"max_tokens,omitempty"`

	// Variables lists expected template placeholders. When present it must
	// include "logs".
	Variables []string `yaml:"variables,omitempty"`
}

// splitFrontmatter extracts YAML frontmatter and body. Expected format:
//
//	---
//	name: incident-report
//	temperature: 0.7
//	---
//	Template body with {logs}
//
// Content without a leading frontmatter block is returned whole as the body.
func splitFrontmatter(content string) (Metadata, string, error) {
	var meta Metadata

	if !strings.HasPrefix(content, "---") {
		return meta, content, nil
	}

	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return meta, content, nil
	}

	raw := strings.TrimSpace(parts[1])
	body := strings.TrimLeft(parts[2], "\r\n")

	if raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &meta); err != nil {
			return meta, "", fmt.Errorf("prompt: parse frontmatter: %w", err)
		}
	}

	if err := validateMetadata(&meta); err != nil {
		return meta, "", fmt.Errorf("prompt: invalid frontmatter: %w", err)
	}

	return meta, body, nil
}

func validateMetadata(m *Metadata) error {
	if m.Temperature != nil && (*m.Temperature < 0.0 || *m.Temperature > 2.0) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %g", *m.Temperature)
	}
	if m.TopP != nil && (*m.TopP < 0.0 || *m.TopP > 1.0) {
		return fmt.Errorf("top_p must be between 0.0 and 1.0, got %g", *m.TopP)
	}
	if m.TopK != nil && *m.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", *m.TopK)
	}
	if m.MaxTokens != nil && *m.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", *m.MaxTokens)
	}
	return nil
}

// GetModel returns the model from metadata, or fallback if not set.
func (t *Template) GetModel(fallback string) string {
	if t.Metadata.Model != "" {
		return t.Metadata.Model
	}
	return fallback
}

// GetTemperature returns the temperature from metadata, or fallback if not set.
func (t *Template) GetTemperature(fallback float64) float64 {
	if t.Metadata.Temperature != nil {
		return *t.Metadata.Temperature
	}
	return fallback
}

// GetMaxTokens returns the response token limit from metadata, or fallback if not set.
func (t *Template) GetMaxTokens(fallback int) int {
	if t.Metadata.MaxTokens != nil {
		return *t.Metadata.MaxTokens
	}
	return fallback
}
