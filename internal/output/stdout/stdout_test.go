package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/crimson-sun/sawmill/internal/model"
)

func sampleReport() model.Report {
	return model.Report{
		ID:          "r-1",
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Model:       "llama3.1:8b",
		Stats: model.Stats{
			TotalLines:         40,
			ErrorCount:         3,
			WarningCount:       5,
			CriticalComponents: []string{"db", "auth"},
		},
		Analysis: "Overall System Health: Degraded\n\nKey Statistics: ...",
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	o := New(JSON, WithWriter(&buf))
	if err := o.Write(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got model.Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.ID != "r-1" || got.Stats.ErrorCount != 3 {
		t.Fatalf("unexpected round trip: %+v", got)
	}
}

func TestWrite_JSONPretty(t *testing.T) {
	var buf bytes.Buffer
	o := New(JSON, WithWriter(&buf), WithPretty())
	if err := o.Write(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Fatal("expected indented output")
	}
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	o := New(Text, WithWriter(&buf))
	if err := o.Write(context.Background(), sampleReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Health: Degraded",
		"Errors: 3",
		"Warnings: 5",
		"db, auth",
		"Model: llama3.1:8b",
		"Overall System Health: Degraded",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWrite_TextCachedMarker(t *testing.T) {
	r := sampleReport()
	r.Cached = true

	var buf bytes.Buffer
	o := New(Text, WithWriter(&buf))
	if err := o.Write(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "(cached)") {
		t.Fatal("expected cached marker in text output")
	}
}
