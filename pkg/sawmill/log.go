package sawmill

import "time"

// Log is a raw log entry with optional metadata. Use with AnalyzeLogs when
// you have timestamp and source information. For plain text lines, use
// Analyze() instead.
type Log struct {
	Text      string         // The log line
	Timestamp time.Time      // When the log was produced (zero = time.Now())
	Source    string         // Provider/origin name (optional)
	Metadata  map[string]any // Additional context (optional, not sent to the model)
}
