package prompt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debouncePeriod = 500 * time.Millisecond
	rewatchDelay   = 100 * time.Millisecond
	rewatchTries   = 10
)

// Watcher reloads a template file when it changes on disk. Editors that
// save via rename (vim, VS Code) remove the watched inode, so the watcher
// re-adds the path after Remove/Rename events. A template that fails to
// parse after a change is skipped; the previous template stays in effect.
type Watcher struct {
	path     string
	fw       *fsnotify.Watcher
	onChange func(*Template)

	mu            sync.Mutex
	debounceTimer *time.Timer

	done      chan struct{}
	closeOnce sync.Once
}

// Watch starts watching path. onChange is invoked with the freshly parsed
// template after every successful reload.
func Watch(path string, onChange func(*Template)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("prompt: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("prompt: watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		fw:       fw,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			switch {
			case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
				w.scheduleReload()
			case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
				w.rewatch()
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("prompt watcher error", "path", w.path, "error", err)
		}
	}
}

// scheduleReload debounces rapid successive writes into one reload.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	t, err := Load(w.path)
	if err != nil {
		slog.Warn("prompt template reload failed, keeping previous template",
			"path", w.path, "error", err)
		return
	}
	slog.Info("prompt template reloaded", "path", w.path, "name", t.Metadata.Name)
	w.onChange(t)
}

// rewatch re-adds the path after a rename-style save, retrying briefly
// while the editor finishes writing the replacement file.
func (w *Watcher) rewatch() {
	for i := 0; i < rewatchTries; i++ {
		select {
		case <-w.done:
			return
		case <-time.After(rewatchDelay):
		}
		if err := w.fw.Add(w.path); err == nil {
			w.scheduleReload()
			return
		}
	}
	slog.Warn("prompt watcher lost file and could not re-watch", "path", w.path)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		err = w.fw.Close()
	})
	return err
}
