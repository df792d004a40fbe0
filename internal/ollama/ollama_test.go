package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"version":"0.5.1"}`))
	}))
	defer srv.Close()

	if err := New(srv.URL).Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWaitForServer_EventualSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithMaxRetries(3))
	if err := c.WaitForServer(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestWaitForServer_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, WithMaxRetries(2))
	if err := c.WaitForServer(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestWaitForServer_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := New(srv.URL, WithMaxRetries(5))
	err := c.WaitForServer(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"llama3.1:8b"},{"name":"mistral:7b"}]}`))
	}))
	defer srv.Close()

	names, err := New(srv.URL).List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 2 || names[0] != "llama3.1:8b" || names[1] != "mistral:7b" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestEnsureModel_AlreadyInstalled(t *testing.T) {
	var pulled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3.1:8b"}]}`))
		case "/api/pull":
			pulled.Store(true)
			w.Write([]byte(`{"status":"success"}`))
		}
	}))
	defer srv.Close()

	if err := New(srv.URL).EnsureModel(context.Background(), "llama3.1:8b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pulled.Load() {
		t.Fatal("pull should not run for an installed model")
	}
}

func TestEnsureModel_PullsMissing(t *testing.T) {
	var pulled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[]}`))
		case "/api/pull":
			pulled.Store(true)
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			if req["name"] != "mistral:7b" {
				t.Errorf("unexpected pull name %q", req["name"])
			}
			w.Write([]byte("{\"status\":\"pulling manifest\"}\n{\"status\":\"success\"}\n"))
		}
	}))
	defer srv.Close()

	if err := New(srv.URL).EnsureModel(context.Background(), "mistral:7b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pulled.Load() {
		t.Fatal("expected pull for a missing model")
	}
}

func TestPull_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"status\":\"pulling manifest\"}\n{\"error\":\"pull model manifest: file does not exist\"}\n"))
	}))
	defer srv.Close()

	err := New(srv.URL).Pull(context.Background(), "nope:latest")
	if err == nil {
		t.Fatal("expected error from server-reported pull failure")
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if req.Model != "llama3.1:8b" {
			t.Errorf("unexpected model %q", req.Model)
		}
		if req.Options == nil || req.Options.Temperature == nil || *req.Options.Temperature != 0.3 {
			t.Errorf("options not passed through: %+v", req.Options)
		}
		w.Write([]byte(`{"model":"llama3.1:8b","response":"All healthy.","done":true,"eval_count":12}`))
	}))
	defer srv.Close()

	temp := 0.3
	resp, err := New(srv.URL).Generate(context.Background(), GenerateRequest{
		Model:   "llama3.1:8b",
		Prompt:  "analyze",
		Options: &Options{Temperature: &temp},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Response != "All healthy." {
		t.Fatalf("unexpected response: %q", resp.Response)
	}
	if resp.EvalCount != 12 {
		t.Fatalf("unexpected eval count: %d", resp.EvalCount)
	}
}

func TestGenerate_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer srv.Close()

	resp, err := New(srv.URL).Generate(context.Background(), GenerateRequest{Model: "m", Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Response != "ok" {
		t.Fatalf("unexpected response: %q", resp.Response)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestGenerate_NoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"model is required"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "p"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retries on 4xx, got %d calls", calls.Load())
	}
}
