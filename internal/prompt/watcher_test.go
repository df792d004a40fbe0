package prompt

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("v1 {logs}"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Template, 1)
	w, err := Watch(path, func(tpl *Template) {
		select {
		case reloaded <- tpl:
		default:
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("v2 {logs}"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case tpl := <-reloaded:
		if tpl.Body != "v2 {logs}" {
			t.Fatalf("expected reloaded body, got %q", tpl.Body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_InvalidTemplateKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("v1 {logs}"), 0o644); err != nil {
		t.Fatal(err)
	}

	calls := make(chan struct{}, 8)
	w, err := Watch(path, func(*Template) { calls <- struct{}{} })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	// Placeholder removed: reload must be rejected, callback never fires.
	if err := os.WriteFile(path, []byte("no placeholder here"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-calls:
		t.Fatal("callback fired for an invalid template")
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestWatcher_RenameStyleSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	if err := os.WriteFile(path, []byte("v1 {logs}"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Template, 1)
	w, err := Watch(path, func(tpl *Template) {
		select {
		case reloaded <- tpl:
		default:
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	// Simulate an editor: write a temp file, rename over the original.
	tmp := filepath.Join(dir, "prompt.txt.tmp")
	if err := os.WriteFile(tmp, []byte("v2 {logs}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case tpl := <-reloaded:
		if tpl.Body != "v2 {logs}" {
			t.Fatalf("expected reloaded body, got %q", tpl.Body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload after rename")
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "nope.txt"), func(*Template) {}); err == nil {
		t.Fatal("expected error watching a missing file")
	}
}
