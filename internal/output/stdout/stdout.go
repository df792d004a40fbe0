package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Format selects how reports are rendered.
type Format string

const (
	// JSON emits one JSON document per report.
	JSON Format = "json"
	// Text emits a human-readable rendering with a stats header.
	Text Format = "text"
)

// Option configures a stdout Output.
type Option func(*Output)

// WithWriter redirects output away from os.Stdout. Used in tests.
func WithWriter(w io.Writer) Option {
	return func(o *Output) { o.w = w }
}

// WithPretty enables indented JSON. No effect in text format.
func WithPretty() Option {
	return func(o *Output) { o.pretty = true }
}

// Output writes reports to stdout as JSON documents or readable text.
type Output struct {
	w      io.Writer
	format Format
	pretty bool
}

// New creates a stdout Output with the given format.
func New(format Format, opts ...Option) *Output {
	o := &Output{w: os.Stdout, format: format}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) Write(_ context.Context, report model.Report) error {
	if o.format == Text {
		if _, err := io.WriteString(o.w, renderText(report)); err != nil {
			return fmt.Errorf("stdout output: %w", err)
		}
		return nil
	}

	enc := json.NewEncoder(o.w)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}

// renderText formats a report as a headed block: health and counts first,
// then the analysis body.
func renderText(r model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Log Analysis Report (%s) ===\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Health: %s | Lines: %d | Errors: %d | Warnings: %d\n",
		r.Stats.Health(), r.Stats.TotalLines, r.Stats.ErrorCount, r.Stats.WarningCount)
	if len(r.Stats.CriticalComponents) > 0 {
		fmt.Fprintf(&b, "Affected components: %s\n", strings.Join(r.Stats.CriticalComponents, ", "))
	}
	fmt.Fprintf(&b, "Model: %s", r.Model)
	if r.Cached {
		b.WriteString(" (cached)")
	}
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(r.Analysis))
	b.WriteString("\n")
	return b.String()
}
