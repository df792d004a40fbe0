package model

import "time"

// Health summarizes the pre-analysis verdict derived from severity counts.
type Health string

const (
	Healthy  Health = "Healthy"
	Degraded Health = "Degraded"
	Critical Health = "Critical"
)

// Stats holds locally computed counts over a log batch. The model receives
// the raw log text; Stats travel alongside the generated analysis so callers
// get exact numbers regardless of what the model writes.
type Stats struct {
	TotalLines         int       `json:"total_lines"`
	ErrorCount         int       `json:"error_count"`
	WarningCount       int       `json:"warning_count"`
	CriticalCount      int       `json:"critical_count,omitempty"`
	CriticalComponents []string  `json:"critical_components,omitempty"`
	First              time.Time `json:"first,omitempty"`
	Last               time.Time `json:"last,omitempty"`
}

// Health applies the severity heuristic: any critical-level line wins,
// then any error or warning degrades, otherwise Healthy.
func (s Stats) Health() Health {
	switch {
	case s.CriticalCount > 0:
		return Critical
	case s.ErrorCount > 0 || s.WarningCount > 0:
		return Degraded
	default:
		return Healthy
	}
}

// Report is sawmill's output type: one executive summary per analyzed batch.
// Analysis is the model's free-text report and is carried opaquely.
type Report struct {
	ID          string        `json:"id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Model       string        `json:"model"`
	Stats       Stats         `json:"stats"`
	Analysis    string        `json:"analysis"`
	Duration    time.Duration `json:"duration_ns"`
	Cached      bool          `json:"cached,omitempty"`
}
