package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crimson-sun/sawmill/internal/cache"
	"github.com/crimson-sun/sawmill/internal/config"
	"github.com/crimson-sun/sawmill/internal/connector"
	"github.com/crimson-sun/sawmill/internal/engine"
	"github.com/crimson-sun/sawmill/internal/logging"
	"github.com/crimson-sun/sawmill/internal/ollama"
	"github.com/crimson-sun/sawmill/internal/output"
	"github.com/crimson-sun/sawmill/internal/output/async"
	fileout "github.com/crimson-sun/sawmill/internal/output/file"
	"github.com/crimson-sun/sawmill/internal/output/multi"
	"github.com/crimson-sun/sawmill/internal/output/stdout"
	"github.com/crimson-sun/sawmill/internal/output/webhook"
	"github.com/crimson-sun/sawmill/internal/pipeline"
	"github.com/crimson-sun/sawmill/internal/prompt"

	// Register connector implementations.
	_ "github.com/crimson-sun/sawmill/internal/connector/file"
	_ "github.com/crimson-sun/sawmill/internal/connector/flyio"
	_ "github.com/crimson-sun/sawmill/internal/connector/stdin"
)

func main() {
	once := flag.Bool("once", false, "analyze one batch via the connector's query mode and exit")
	since := flag.Duration("since", time.Hour, "time range for -once mode")
	limit := flag.Int("limit", 0, "max lines fetched in -once mode, 0 for no cap")
	flag.Parse()

	cfg := config.Load()
	logging.Init(cfg.Output.Destination == "stdout", logging.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, cfg, *once, *since, *limit); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, once bool, since time.Duration, limit int) error {
	// Prompt template: embedded default unless a path is configured.
	tpl := prompt.Default()
	if cfg.Prompt.Path != "" {
		var err error
		tpl, err = prompt.Load(cfg.Prompt.Path)
		if err != nil {
			return fmt.Errorf("load prompt: %w", err)
		}
	}

	// Ollama client. Wait for the server and make sure the model is present
	// before accepting any logs.
	client := ollama.New(cfg.Ollama.Host,
		ollama.WithTimeout(cfg.Ollama.Timeout),
		ollama.WithMaxRetries(cfg.Ollama.MaxRetries),
		ollama.WithRateLimit(cfg.Ollama.RateLimit),
	)
	if err := client.WaitForServer(ctx); err != nil {
		return fmt.Errorf("ollama server: %w", err)
	}
	modelName := tpl.GetModel(cfg.Ollama.Model)
	if err := client.EnsureModel(ctx, modelName); err != nil {
		return fmt.Errorf("ensure model: %w", err)
	}

	engOpts := []engine.Option{
		engine.WithDedupWindow(cfg.Engine.DedupWindow),
		engine.WithTokenBudget(cfg.Engine.TokenBudget),
		engine.WithChunkConcurrency(cfg.Engine.ChunkConcurrency),
	}

	if cfg.Cache.Path != "" {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer c.Close()
		engOpts = append(engOpts, engine.WithCache(c))
	}

	eng := engine.New(client, cfg.Ollama.Model, tpl, engOpts...)

	// Hot reload: a changed prompt file applies to the next analysis pass.
	if cfg.Prompt.Path != "" && cfg.Prompt.Watch {
		w, err := prompt.Watch(cfg.Prompt.Path, eng.SetTemplate)
		if err != nil {
			return fmt.Errorf("watch prompt: %w", err)
		}
		defer w.Close()
	}

	out, err := buildOutput(cfg.Output)
	if err != nil {
		return err
	}

	ctor, err := connector.Get(cfg.Connector.Provider)
	if err != nil {
		return err
	}
	conn := ctor()

	p := pipeline.New(conn, eng, out,
		pipeline.WithWindow(cfg.Engine.Window),
		pipeline.WithMaxBatch(cfg.Engine.MaxBatch),
	)
	defer p.Close()

	connCfg := connector.ConnectorConfig{
		Provider: cfg.Connector.Provider,
		APIKey:   cfg.Connector.APIKey,
		Endpoint: cfg.Connector.Endpoint,
		Extra:    cfg.Connector.Extra,
	}

	slog.Info("starting",
		"connector", cfg.Connector.Provider,
		"model", modelName,
		"output", cfg.Output.Destination,
		"once", once)

	if once {
		params := connector.QueryParams{
			Start: time.Now().Add(-since),
			End:   time.Now(),
			Limit: limit,
		}
		return p.Query(ctx, connCfg, params)
	}
	return p.Stream(ctx, connCfg)
}

// buildOutput assembles the report destination from config. Webhook delivery
// is wrapped in the async writer so a slow endpoint cannot stall analysis.
func buildOutput(cfg config.OutputConfig) (output.Output, error) {
	switch cfg.Destination {
	case "stdout", "":
		return stdoutOutput(cfg), nil
	case "file":
		return fileout.New(cfg.FilePath, fileout.WithMaxSize(64*1024*1024))
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("output: webhook destination requires SAWMILL_WEBHOOK_URL")
		}
		return async.New(webhook.New(cfg.WebhookURL)), nil
	case "multi":
		// stdout plus file, for keeping an NDJSON archive alongside the console.
		f, err := fileout.New(cfg.FilePath, fileout.WithMaxSize(64*1024*1024))
		if err != nil {
			return nil, err
		}
		return multi.New(stdoutOutput(cfg), f), nil
	default:
		return nil, fmt.Errorf("output: unknown destination %q", cfg.Destination)
	}
}

func stdoutOutput(cfg config.OutputConfig) output.Output {
	format := stdout.Text
	if cfg.Format == "json" {
		format = stdout.JSON
	}
	opts := []stdout.Option{}
	if cfg.Pretty {
		opts = append(opts, stdout.WithPretty())
	}
	return stdout.New(format, opts...)
}
