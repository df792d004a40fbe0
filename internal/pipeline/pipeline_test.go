package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/sawmill/internal/connector"
	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/model"
	"github.com/crimson-sun/sawmill/internal/ollama"
	"github.com/crimson-sun/sawmill/internal/prompt"
)

type fakeConnector struct {
	ch      chan model.RawLog
	queried []model.RawLog
}

func (f *fakeConnector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLog, error) {
	return f.ch, nil
}

func (f *fakeConnector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLog, error) {
	return f.queried, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return &ollama.GenerateResponse{
		Model:    req.Model,
		Response: "Overall System Health: Healthy",
		Done:     true,
	}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type collectOutput struct {
	mu      sync.Mutex
	reports []model.Report
	closed  bool
}

func (c *collectOutput) Write(_ context.Context, report model.Report) error {
	c.mu.Lock()
	c.reports = append(c.reports, report)
	c.mu.Unlock()
	return nil
}

func (c *collectOutput) Close() error {
	c.closed = true
	return nil
}

func (c *collectOutput) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}

func raw(line string) model.RawLog {
	return model.RawLog{Timestamp: time.Now(), Source: "test", Raw: line}
}

func newTestEngine(gen engine.Generator) *engine.Engine {
	return engine.New(gen, "llama3.1:8b", prompt.Default())
}

func TestQuery_OneReport(t *testing.T) {
	conn := &fakeConnector{queried: []model.RawLog{
		raw("INFO started"),
		raw("ERROR db timeout"),
	}}
	gen := &fakeGenerator{}
	out := &collectOutput{}
	p := New(conn, newTestEngine(gen), out)

	if err := p.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if out.count() != 1 {
		t.Fatalf("expected 1 report, got %d", out.count())
	}
	if gen.callCount() != 1 {
		t.Fatalf("expected 1 generate call, got %d", gen.callCount())
	}
	if out.reports[0].Stats.ErrorCount != 1 {
		t.Fatalf("unexpected stats: %+v", out.reports[0].Stats)
	}
}

func TestQuery_EmptyBatchSkipsAnalysis(t *testing.T) {
	conn := &fakeConnector{}
	gen := &fakeGenerator{}
	out := &collectOutput{}
	p := New(conn, newTestEngine(gen), out)

	if err := p.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if out.count() != 0 {
		t.Fatalf("expected no reports for empty batch, got %d", out.count())
	}
	if gen.callCount() != 0 {
		t.Fatalf("expected no generate calls, got %d", gen.callCount())
	}
}

func TestStream_WindowFlush(t *testing.T) {
	conn := &fakeConnector{ch: make(chan model.RawLog, 8)}
	gen := &fakeGenerator{}
	out := &collectOutput{}
	p := New(conn, newTestEngine(gen), out, WithWindow(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Stream(ctx, connector.ConnectorConfig{}) }()

	conn.ch <- raw("ERROR one")
	conn.ch <- raw("WARN two")

	deadline := time.After(2 * time.Second)
	for out.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("window flush never produced a report")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(conn.ch)
	if err := <-done; err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if out.count() != 1 {
		t.Fatalf("expected 1 report, got %d", out.count())
	}
}

func TestStream_MaxBatchFlush(t *testing.T) {
	conn := &fakeConnector{ch: make(chan model.RawLog, 8)}
	gen := &fakeGenerator{}
	out := &collectOutput{}
	p := New(conn, newTestEngine(gen), out, WithWindow(time.Hour), WithMaxBatch(3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Stream(ctx, connector.ConnectorConfig{}) }()

	for i := 0; i < 3; i++ {
		conn.ch <- raw("ERROR batch line")
	}

	deadline := time.After(2 * time.Second)
	for out.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("max batch flush never produced a report")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(conn.ch)
	if err := <-done; err != nil {
		t.Fatalf("Stream: %v", err)
	}
}

func TestStream_FinalFlushOnSourceClose(t *testing.T) {
	conn := &fakeConnector{ch: make(chan model.RawLog, 8)}
	gen := &fakeGenerator{}
	out := &collectOutput{}
	p := New(conn, newTestEngine(gen), out, WithWindow(time.Hour))

	conn.ch <- raw("ERROR leftover")
	close(conn.ch)

	if err := p.Stream(context.Background(), connector.ConnectorConfig{}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if out.count() != 1 {
		t.Fatalf("expected final flush report, got %d", out.count())
	}
}

func TestClose_ClosesOutput(t *testing.T) {
	out := &collectOutput{}
	p := New(&fakeConnector{}, newTestEngine(&fakeGenerator{}), out)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !out.closed {
		t.Fatal("expected output closed")
	}
}
