// Package prompt loads, validates, and renders the analysis prompt template.
//
// A template is plain text with a single {logs} placeholder. The placeholder
// is substituted exactly once at render time; every other byte of the
// template passes through unchanged. Template files may carry optional YAML
// frontmatter overriding model parameters per template.
package prompt

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// Placeholder is the substitution point for log content.
const Placeholder = "{logs}"

//go:embed default.txt
var defaultTemplate string

// Template is a validated prompt template.
type Template struct {
	Metadata Metadata
	Body     string
}

// Parse splits optional YAML frontmatter from the body and validates the
// template. A template body must contain the {logs} placeholder exactly once.
func Parse(content string) (*Template, error) {
	meta, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}

	switch n := strings.Count(body, Placeholder); {
	case n == 0:
		return nil, fmt.Errorf("prompt: template missing %s placeholder", Placeholder)
	case n > 1:
		return nil, fmt.Errorf("prompt: template contains %d %s placeholders, want exactly 1", n, Placeholder)
	}

	if len(meta.Variables) > 0 {
		found := false
		for _, v := range meta.Variables {
			if v == "logs" {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("prompt: frontmatter variables %v do not declare \"logs\"", meta.Variables)
		}
	}

	return &Template{Metadata: meta, Body: body}, nil
}

// Load reads and parses a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: read %s: %w", path, err)
	}
	t, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w (file %s)", err, path)
	}
	return t, nil
}

// Default returns the embedded executive-report template.
func Default() *Template {
	t, err := Parse(defaultTemplate)
	if err != nil {
		// The embedded template is validated by tests; reaching this is a build defect.
		panic(fmt.Sprintf("prompt: embedded default template invalid: %v", err))
	}
	return t
}

// Render substitutes the log content into the template. The substitution
// happens exactly once; the rest of the body is returned byte-identical.
func (t *Template) Render(logs string) string {
	return strings.Replace(t.Body, Placeholder, logs, 1)
}
