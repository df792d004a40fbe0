package sawmill

import "time"

// Report is an executive summary of one analyzed log batch.
// This is the stable public type — internal representations may evolve
// independently without breaking consumers.
type Report struct {
	ID                 string        `json:"id"`                            // Unique report identifier
	GeneratedAt        time.Time     `json:"generated_at"`                  // When the analysis ran
	Model              string        `json:"model"`                         // Model that produced the analysis
	Health             string        `json:"health"`                        // Healthy, Degraded, or Critical
	TotalLines         int           `json:"total_lines"`                   // Lines in the analyzed batch
	ErrorCount         int           `json:"error_count"`                   // Error-level lines (critical included)
	WarningCount       int           `json:"warning_count"`                 // Warning-level lines
	CriticalComponents []string      `json:"critical_components,omitempty"` // Components seen on error lines
	Analysis           string        `json:"analysis"`                      // Model-generated executive report
	Duration           time.Duration `json:"duration_ns"`                   // Wall time of the analysis
	Cached             bool          `json:"cached,omitempty"`              // True when served from the cache
}
