// Package engine turns a batch of raw logs into an executive report:
// scan for statistics, collapse repeats, fit the token budget, render the
// prompt, and ask the model. Oversized batches are split into chunks that
// are analyzed concurrently and merged with an aggregation pass.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/sawmill/internal/engine/compactor"
	"github.com/crimson-sun/sawmill/internal/engine/dedup"
	"github.com/crimson-sun/sawmill/internal/engine/scan"
	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/ollama"
	"github.com/crimson-sun/sawmill/internal/prompt"
)

// ErrNoLogs is returned when Analyze is called with an empty batch.
var ErrNoLogs = errors.New("engine: no log lines to analyze")

// Generator runs completions. *ollama.Client satisfies this.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
}

// ReportCache stores finished reports keyed by prompt hash. Implementations
// must treat storage failures as misses rather than surfacing errors.
type ReportCache interface {
	Get(ctx context.Context, key string) (model.Report, bool)
	Put(ctx context.Context, key string, r model.Report)
}

// aggregateHeader introduces the merge pass for chunked batches. The chunk
// reports follow, separated by markers.
const aggregateHeader = `The following are partial executive reports generated from consecutive
segments of the same log window. Merge them into one report with the same
four sections (Overall System Health, Key Statistics, Priority Issues,
Recommendations). Sum the statistics, keep the most urgent issues at the
top, and give 2-3 combined recommendations.

Partial reports:
`

// Option configures an Engine.
type Option func(*Engine)

// WithDedupWindow sets the repeated-line collapse window.
func WithDedupWindow(d time.Duration) Option {
	return func(e *Engine) { e.dedup = dedup.New(dedup.Config{Window: d}) }
}

// WithTokenBudget sets the prompt token budget. 0 disables budgeting and chunking.
func WithTokenBudget(n int) Option {
	return func(e *Engine) { e.budget = n }
}

// WithChunkConcurrency sets how many chunks are analyzed in parallel. Default: 2.
func WithChunkConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkConcurrency = n
		}
	}
}

// WithCache attaches a report cache.
func WithCache(c ReportCache) Option {
	return func(e *Engine) { e.cache = c }
}

// Engine orchestrates the scan, dedup, compact, prompt, generate pipeline.
type Engine struct {
	gen   Generator
	model string

	mu  sync.RWMutex
	tpl *prompt.Template

	dedup            *dedup.Deduplicator
	budget           int
	chunkConcurrency int
	cache            ReportCache
}

// New creates an Engine using the given generator, default model name, and
// template.
func New(gen Generator, modelName string, tpl *prompt.Template, opts ...Option) *Engine {
	e := &Engine{
		gen:              gen,
		model:            modelName,
		tpl:              tpl,
		dedup:            dedup.New(dedup.Config{}),
		chunkConcurrency: 2,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetTemplate swaps the active template. Safe to call concurrently with
// Analyze; used by the prompt watcher on hot reload.
func (e *Engine) SetTemplate(t *prompt.Template) {
	e.mu.Lock()
	e.tpl = t
	e.mu.Unlock()
}

func (e *Engine) template() *prompt.Template {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tpl
}

// Analyze produces one report for the batch.
func (e *Engine) Analyze(ctx context.Context, raws []model.RawLog) (model.Report, error) {
	if len(raws) == 0 {
		return model.Report{}, ErrNoLogs
	}
	start := time.Now()
	tpl := e.template()

	stats := scan.Stats(raws)
	deduped := e.dedup.Collapse(raws)
	kept := compactor.New(e.budget).Compact(deduped)

	joined := joinLines(kept)
	fullPrompt := tpl.Render(joined)
	modelName := tpl.GetModel(e.model)
	key := cacheKey(modelName, fullPrompt)

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, key); ok {
			cached.Cached = true
			cached.Stats = stats
			cached.Duration = time.Since(start)
			slog.Debug("report served from cache", "key", key[:12])
			return cached, nil
		}
	}

	var analysis string
	var err error
	if e.budget > 0 && compactor.Tokens(kept) > e.budget {
		analysis, err = e.analyzeChunked(ctx, tpl, modelName, kept)
	} else {
		analysis, err = e.generate(ctx, tpl, modelName, fullPrompt)
	}
	if err != nil {
		return model.Report{}, err
	}

	report := model.Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Model:       modelName,
		Stats:       stats,
		Analysis:    analysis,
		Duration:    time.Since(start),
	}
	if e.cache != nil {
		e.cache.Put(ctx, key, report)
	}
	return report, nil
}

// generate runs one completion with the template's model parameters.
func (e *Engine) generate(ctx context.Context, tpl *prompt.Template, modelName, promptText string) (string, error) {
	resp, err := e.gen.Generate(ctx, ollama.GenerateRequest{
		Model:   modelName,
		Prompt:  promptText,
		Options: optionsFrom(tpl),
	})
	if err != nil {
		return "", fmt.Errorf("engine: %w", err)
	}
	return resp.Response, nil
}

// analyzeChunked splits an over-budget batch into budget-sized chunks,
// analyzes them concurrently, and merges the partial reports.
func (e *Engine) analyzeChunked(ctx context.Context, tpl *prompt.Template, modelName string, raws []model.RawLog) (string, error) {
	chunks := splitChunks(raws, e.budget)
	slog.Info("batch exceeds token budget, analyzing in chunks",
		"lines", len(raws), "chunks", len(chunks))

	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.chunkConcurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			text, err := e.generate(gctx, tpl, modelName, tpl.Render(joinLines(chunk)))
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
			}
			partials[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(aggregateHeader)
	for i, p := range partials {
		fmt.Fprintf(&b, "\n--- report %d of %d ---\n%s\n", i+1, len(partials), p)
	}

	resp, err := e.gen.Generate(ctx, ollama.GenerateRequest{
		Model:   modelName,
		Prompt:  b.String(),
		Options: optionsFrom(tpl),
	})
	if err != nil {
		return "", fmt.Errorf("engine: aggregate: %w", err)
	}
	return resp.Response, nil
}

// splitChunks groups lines into consecutive chunks of at most budget tokens.
// A single line larger than the budget still forms its own chunk.
func splitChunks(raws []model.RawLog, budget int) [][]model.RawLog {
	var chunks [][]model.RawLog
	var cur []model.RawLog
	tokens := 0
	for _, r := range raws {
		t := compactor.EstimateTokens(r.Raw)
		if len(cur) > 0 && tokens+t > budget {
			chunks = append(chunks, cur)
			cur = nil
			tokens = 0
		}
		cur = append(cur, r)
		tokens += t
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

func joinLines(raws []model.RawLog) string {
	lines := make([]string, len(raws))
	for i, r := range raws {
		lines[i] = r.Raw
	}
	return strings.Join(lines, "\n")
}

func optionsFrom(tpl *prompt.Template) *ollama.Options {
	m := tpl.Metadata
	if m.Temperature == nil && m.TopP == nil && m.TopK == nil && m.MaxTokens == nil {
		return nil
	}
	return &ollama.Options{
		Temperature: m.Temperature,
		TopP:        m.TopP,
		TopK:        m.TopK,
		NumPredict:  m.MaxTokens,
	}
}

func cacheKey(modelName, promptText string) string {
	h := sha256.New()
	h.Write([]byte(modelName))
	h.Write([]byte{0})
	h.Write([]byte(promptText))
	return hex.EncodeToString(h.Sum(nil))
}
