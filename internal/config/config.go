package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all sawmill configuration.
type Config struct {
	Ollama    OllamaConfig
	Prompt    PromptConfig
	Connector ConnectorConfig
	Engine    EngineConfig
	Cache     CacheConfig
	Output    OutputConfig
	LogLevel  string
}

// OllamaConfig holds Ollama server settings.
type OllamaConfig struct {
	Host       string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64 // generate requests per second; 0 = unlimited
}

// PromptConfig holds prompt template settings.
// An empty Path selects the embedded default template.
type PromptConfig struct {
	Path  string
	Watch bool
}

// ConnectorConfig holds provider-specific connection settings.
type ConnectorConfig struct {
	Provider string
	APIKey   string
	Endpoint string
	Extra    map[string]string
}

// EngineConfig holds analysis settings.
type EngineConfig struct {
	Window           time.Duration // stream batching window
	MaxBatch         int           // flush early when this many lines accumulate
	TokenBudget      int           // prompt token budget; 0 = unlimited
	DedupWindow      time.Duration // repeated-line collapse window
	ChunkConcurrency int           // concurrent chunk analyses for oversized batches
}

// CacheConfig holds report cache settings. An empty Path disables the cache.
type CacheConfig struct {
	Path string
	TTL  time.Duration // 0 = entries never expire
}

// OutputConfig holds report destination settings.
type OutputConfig struct {
	Destination string // "stdout", "file", "webhook", "multi"
	Format      string // "text" or "json" (stdout only)
	Pretty      bool
	FilePath    string
	WebhookURL  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Ollama: OllamaConfig{
			Host:       getenv("SAWMILL_OLLAMA_HOST", "http://localhost:11434"),
			Model:      getenv("SAWMILL_MODEL", "llama3.1:8b"),
			Timeout:    getenvDuration("SAWMILL_OLLAMA_TIMEOUT", 30*time.Second),
			MaxRetries: getenvInt("SAWMILL_OLLAMA_RETRIES", 3),
			RateLimit:  getenvFloat("SAWMILL_RATE_LIMIT", 0),
		},
		Prompt: PromptConfig{
			Path:  os.Getenv("SAWMILL_PROMPT_PATH"),
			Watch: getenvBool("SAWMILL_PROMPT_WATCH", false),
		},
		Connector: ConnectorConfig{
			Provider: getenv("SAWMILL_CONNECTOR", "stdin"),
			APIKey:   os.Getenv("SAWMILL_API_KEY"),
			Endpoint: os.Getenv("SAWMILL_ENDPOINT"),
			Extra:    loadConnectorExtra(),
		},
		Engine: EngineConfig{
			Window:           getenvDuration("SAWMILL_WINDOW", 30*time.Second),
			MaxBatch:         getenvInt("SAWMILL_MAX_BATCH", 500),
			TokenBudget:      getenvInt("SAWMILL_TOKEN_BUDGET", 4096),
			DedupWindow:      getenvDuration("SAWMILL_DEDUP_WINDOW", 5*time.Second),
			ChunkConcurrency: getenvInt("SAWMILL_CHUNK_CONCURRENCY", 2),
		},
		Cache: CacheConfig{
			Path: os.Getenv("SAWMILL_CACHE_PATH"),
			TTL:  getenvDuration("SAWMILL_CACHE_TTL", 0),
		},
		Output: OutputConfig{
			Destination: getenv("SAWMILL_OUTPUT", "stdout"),
			Format:      getenv("SAWMILL_OUTPUT_FORMAT", "text"),
			Pretty:      getenvBool("SAWMILL_OUTPUT_PRETTY", false),
			FilePath:    getenv("SAWMILL_OUTPUT_FILE", "reports.ndjson"),
			WebhookURL:  os.Getenv("SAWMILL_WEBHOOK_URL"),
		},
		LogLevel: getenv("SAWMILL_LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConnectorExtra reads provider-specific env vars into an Extra map.
func loadConnectorExtra() map[string]string {
	vars := []struct {
		envVar   string
		extraKey string
	}{
		{"SAWMILL_FILE_PATH", "path"},
		{"SAWMILL_FLY_APP_NAME", "app_name"},
		{"SAWMILL_POLL_INTERVAL", "poll_interval"},
	}

	var m map[string]string
	for _, v := range vars {
		if val := os.Getenv(v.envVar); val != "" {
			if m == nil {
				m = make(map[string]string)
			}
			m[v.extraKey] = val
		}
	}
	return m
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getenvDuration parses a Go duration string ("30s", "5m"). Bare integers
// are accepted as seconds for compatibility with older deployments.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
