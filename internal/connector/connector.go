// Package connector defines the log source abstraction and the provider
// registry. Providers register themselves from their package init; importing
// a provider package for side effects enables it.
package connector

import (
	"context"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Connector defines the interface all log source connectors must implement.
type Connector interface {
	// Stream opens a long-lived source and sends raw logs as they arrive.
	Stream(ctx context.Context, cfg ConnectorConfig) (<-chan model.RawLog, error)

	// Query fetches a batch of historical logs matching the given parameters.
	Query(ctx context.Context, cfg ConnectorConfig, params QueryParams) ([]model.RawLog, error)
}

// ConnectorConfig holds provider-specific connection settings.
type ConnectorConfig struct {
	Provider string
	APIKey   string
	Endpoint string
	Extra    map[string]string
}

// QueryParams defines filters for historical log queries.
type QueryParams struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Filter string
}
