// Package pipeline connects a connector, the analysis engine, and an output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crimson-sun/sawmill/internal/connector"
	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/output"
)

const defaultWindow = 30 * time.Second

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWindow sets how long logs accumulate before an analysis pass runs.
// Default: 30s.
func WithWindow(d time.Duration) Option {
	return func(p *Pipeline) { p.window = d }
}

// WithMaxBatch caps the number of buffered logs; reaching the cap triggers an
// immediate analysis pass. 0 (default) means timer-only flushing.
func WithMaxBatch(n int) Option {
	return func(p *Pipeline) { p.maxBatch = n }
}

// Pipeline drives logs from a connector through the engine to an output.
type Pipeline struct {
	connector connector.Connector
	engine    *engine.Engine
	output    output.Output
	window    time.Duration
	maxBatch  int
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, eng *engine.Engine, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		connector: conn,
		engine:    eng,
		output:    out,
		window:    defaultWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stream runs the pipeline in streaming mode: logs accumulate in a window
// buffer and each flush produces one report. Blocks until the context is
// cancelled or the source closes; a final flush covers the remaining buffer.
func (p *Pipeline) Stream(ctx context.Context, cfg connector.ConnectorConfig) error {
	ch, err := p.connector.Stream(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pipeline stream: %w", err)
	}

	buf := newStreamBuffer(p.window, p.maxBatch)

	for {
		select {
		case <-ctx.Done():
			// Analyze whatever is buffered before shutting down. The parent
			// context is gone, so give the flush its own deadline.
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := p.analyze(flushCtx, buf.take())
			cancel()
			if err != nil {
				return err
			}
			return ctx.Err()
		case <-buf.flushCh():
			if err := p.analyze(ctx, buf.take()); err != nil {
				return err
			}
		case raw, ok := <-ch:
			if !ok {
				return p.analyze(ctx, buf.take())
			}
			if buf.add(raw) {
				if err := p.analyze(ctx, buf.take()); err != nil {
					return err
				}
			}
		}
	}
}

// Query runs the pipeline in one-shot mode: fetch, analyze once, write.
func (p *Pipeline) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) error {
	raws, err := p.connector.Query(ctx, cfg, params)
	if err != nil {
		return fmt.Errorf("pipeline query: %w", err)
	}
	return p.analyze(ctx, raws)
}

// analyze runs one engine pass over the batch and writes the report.
// An empty batch is a quiet window, not an error.
func (p *Pipeline) analyze(ctx context.Context, raws []model.RawLog) error {
	report, err := p.engine.Analyze(ctx, raws)
	if errors.Is(err, engine.ErrNoLogs) {
		slog.Debug("empty window, skipping analysis")
		return nil
	}
	if err != nil {
		return fmt.Errorf("pipeline analyze: %w", err)
	}
	if err := p.output.Write(ctx, report); err != nil {
		return fmt.Errorf("pipeline output: %w", err)
	}
	return nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}
