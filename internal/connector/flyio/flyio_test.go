package flyio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crimson-sun/sawmill/internal/connector"
)

func logsPage(next string, entries ...logWrapper) logsResponse {
	return logsResponse{Data: entries, Meta: meta{NextToken: next}}
}

func entry(id, ts, msg, level string) logWrapper {
	return logWrapper{
		ID:   id,
		Type: "log",
		Attributes: logAttributes{
			Timestamp: ts,
			Message:   msg,
			Level:     level,
			Instance:  "app-1",
			Region:    "iad",
		},
	}
}

func TestQuery_Pagination(t *testing.T) {
	pages := map[string]logsResponse{
		"":    logsPage("tok2", entry("1", "2024-01-01T10:00:00Z", "first", "info")),
		"tok2": logsPage("", entry("2", "2024-01-01T10:00:01Z", "second", "error")),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pages[r.URL.Query().Get("next_token")])
	}))
	defer srv.Close()

	c := &Connector{}
	cfg := connector.ConnectorConfig{
		Endpoint: srv.URL,
		Extra:    map[string]string{"app_name": "myapp"},
	}
	logs, err := c.Query(context.Background(), cfg, connector.QueryParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Raw != "first" || logs[1].Raw != "second" {
		t.Fatalf("unexpected order: %q, %q", logs[0].Raw, logs[1].Raw)
	}
	if logs[0].Source != "flyio" {
		t.Fatalf("unexpected source: %q", logs[0].Source)
	}
	if logs[1].Metadata["level"] != "error" {
		t.Fatalf("unexpected level metadata: %v", logs[1].Metadata["level"])
	}
}

func TestQuery_TimeFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(logsPage("",
			entry("1", "2024-01-01T09:00:00Z", "too early", "info"),
			entry("2", "2024-01-01T10:30:00Z", "in range", "info"),
			entry("3", "2024-01-01T12:00:00Z", "too late", "info"),
		))
	}))
	defer srv.Close()

	c := &Connector{}
	cfg := connector.ConnectorConfig{
		Endpoint: srv.URL,
		Extra:    map[string]string{"app_name": "myapp"},
	}
	params := connector.QueryParams{
		Start: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
	}
	logs, err := c.Query(context.Background(), cfg, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].Raw != "in range" {
		t.Fatalf("unexpected result: %+v", logs)
	}
}

func TestQuery_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(logsPage("more",
			entry("1", "2024-01-01T10:00:00Z", "a", "info"),
			entry("2", "2024-01-01T10:00:01Z", "b", "info"),
			entry("3", "2024-01-01T10:00:02Z", "c", "info"),
		))
	}))
	defer srv.Close()

	c := &Connector{}
	cfg := connector.ConnectorConfig{
		Endpoint: srv.URL,
		Extra:    map[string]string{"app_name": "myapp"},
	}
	logs, err := c.Query(context.Background(), cfg, connector.QueryParams{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected limit to cap at 2, got %d", len(logs))
	}
}

func TestQuery_MissingAppName(t *testing.T) {
	c := &Connector{}
	_, err := c.Query(context.Background(), connector.ConnectorConfig{}, connector.QueryParams{})
	if err == nil {
		t.Fatal("expected error for missing app_name")
	}
}

func TestStream_ForwardsAndAdvancesCursor(t *testing.T) {
	pages := map[string]logsResponse{
		"":    logsPage("c1", entry("1", "2024-01-01T10:00:00Z", "one", "info")),
		"c1":  logsPage("c2", entry("2", "2024-01-01T10:00:05Z", "two", "warn")),
		"c2": logsPage(""),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pages[r.URL.Query().Get("next_token")])
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &Connector{}
	cfg := connector.ConnectorConfig{
		Endpoint: srv.URL,
		Extra: map[string]string{
			"app_name":      "myapp",
			"poll_interval": "20ms",
		},
	}
	ch, err := c.Stream(ctx, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case raw := <-ch:
			got = append(got, raw.Raw)
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected stream contents: %v", got)
	}

	cancel()
	for range ch {
	}
}
