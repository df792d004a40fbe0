package sawmill

import (
	"context"
	"fmt"
	"time"

	"github.com/crimson-sun/sawmill/internal/cache"
	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/ollama"
	"github.com/crimson-sun/sawmill/internal/prompt"
)

// Sawmill turns batches of log lines into executive reports using a local
// Ollama model. Safe for concurrent use.
type Sawmill struct {
	engine *engine.Engine
	client *ollama.Client
	cache  *cache.Cache // nil when caching is disabled
}

// New creates a Sawmill instance. It verifies the Ollama server is reachable
// and, with WithEnsureModel, pulls the model if missing. Create once, reuse
// across batches.
func New(ctx context.Context, opts ...Option) (*Sawmill, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	client := ollama.New(o.host, ollama.WithTimeout(o.timeout))
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("sawmill: ollama server unreachable at %s: %w", o.host, err)
	}

	tpl := prompt.Default()
	if o.promptPath != "" {
		var err error
		tpl, err = prompt.Load(o.promptPath)
		if err != nil {
			return nil, fmt.Errorf("sawmill: %w", err)
		}
	}

	modelName := tpl.GetModel(o.model)
	if o.ensureModel {
		if err := client.EnsureModel(ctx, modelName); err != nil {
			return nil, fmt.Errorf("sawmill: %w", err)
		}
	}

	engOpts := []engine.Option{
		engine.WithDedupWindow(o.dedupWindow),
		engine.WithTokenBudget(o.tokenBudget),
	}

	var c *cache.Cache
	if o.cachePath != "" {
		var err error
		c, err = cache.Open(o.cachePath, o.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("sawmill: %w", err)
		}
		engOpts = append(engOpts, engine.WithCache(c))
	}

	eng := engine.New(client, o.model, tpl, engOpts...)
	return &Sawmill{engine: eng, client: client, cache: c}, nil
}

// Analyze summarizes a batch of plain log lines into one report.
func (s *Sawmill) Analyze(ctx context.Context, lines []string) (Report, error) {
	raws := make([]model.RawLog, len(lines))
	now := time.Now()
	for i, line := range lines {
		raws[i] = model.RawLog{Timestamp: now, Raw: line}
	}
	r, err := s.engine.Analyze(ctx, raws)
	if err != nil {
		return Report{}, err
	}
	return reportFromInternal(r), nil
}

// AnalyzeLogs summarizes a batch of structured log entries. Use this when
// you have timestamp and source information; dedup windows are computed
// from entry timestamps.
func (s *Sawmill) AnalyzeLogs(ctx context.Context, logs []Log) (Report, error) {
	raws := make([]model.RawLog, len(logs))
	now := time.Now()
	for i, l := range logs {
		ts := l.Timestamp
		if ts.IsZero() {
			ts = now
		}
		raws[i] = model.RawLog{
			Timestamp: ts,
			Source:    l.Source,
			Raw:       l.Text,
			Metadata:  l.Metadata,
		}
	}
	r, err := s.engine.Analyze(ctx, raws)
	if err != nil {
		return Report{}, err
	}
	return reportFromInternal(r), nil
}

// Close releases the report cache, if any.
func (s *Sawmill) Close() error {
	if s.cache != nil {
		return s.cache.Close()
	}
	return nil
}

// reportFromInternal converts the internal report to the public type.
func reportFromInternal(r model.Report) Report {
	return Report{
		ID:                 r.ID,
		GeneratedAt:        r.GeneratedAt,
		Model:              r.Model,
		Health:             string(r.Stats.Health()),
		TotalLines:         r.Stats.TotalLines,
		ErrorCount:         r.Stats.ErrorCount,
		WarningCount:       r.Stats.WarningCount,
		CriticalComponents: r.Stats.CriticalComponents,
		Analysis:           r.Analysis,
		Duration:           r.Duration,
		Cached:             r.Cached,
	}
}
