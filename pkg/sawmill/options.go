package sawmill

import "time"

type options struct {
	host        string
	model       string
	promptPath  string
	dedupWindow time.Duration
	tokenBudget int
	cachePath   string
	cacheTTL    time.Duration
	timeout     time.Duration
	ensureModel bool
}

// Option configures a Sawmill instance.
type Option func(*options)

// WithHost sets the Ollama server address. Default: http://localhost:11434.
func WithHost(host string) Option {
	return func(o *options) { o.host = host }
}

// WithModel sets the default model name. Default: llama3.1:8b.
// A prompt file's frontmatter can override this per template.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithPromptFile loads the analysis prompt from a file instead of using the
// built-in template. The file may carry YAML frontmatter for model and
// sampling overrides.
func WithPromptFile(path string) Option {
	return func(o *options) { o.promptPath = path }
}

// WithDedupWindow sets the repeated-line collapse window. Default: 5s.
func WithDedupWindow(d time.Duration) Option {
	return func(o *options) { o.dedupWindow = d }
}

// WithTokenBudget caps the prompt size in estimated tokens. Batches over the
// budget are split into chunks and merged with an aggregation pass.
// 0 (default) disables budgeting.
func WithTokenBudget(n int) Option {
	return func(o *options) { o.tokenBudget = n }
}

// WithCache enables the SQLite report cache at the given path. Identical
// prompts within the TTL return the cached report without calling the model.
func WithCache(path string, ttl time.Duration) Option {
	return func(o *options) {
		o.cachePath = path
		o.cacheTTL = ttl
	}
}

// WithTimeout sets the HTTP timeout for model calls. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithEnsureModel pulls the model on New if the server does not have it.
func WithEnsureModel() Option {
	return func(o *options) { o.ensureModel = true }
}

func defaultOptions() options {
	return options{
		host:        "http://localhost:11434",
		model:       "llama3.1:8b",
		dedupWindow: 5 * time.Second,
		cacheTTL:    time.Hour,
		timeout:     30 * time.Second,
	}
}
