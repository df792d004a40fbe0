// Package file reads logs from a local file, one entry per line.
package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/crimson-sun/sawmill/internal/connector"
	"github.com/crimson-sun/sawmill/internal/model"
)

const defaultPollInterval = time.Second

func init() {
	connector.Register("file", func() connector.Connector {
		return &Connector{}
	})
}

// Connector reads log lines from a local file. Query reads the whole file;
// Stream tails it by polling from the last read offset.
type Connector struct{}

func pathFrom(cfg connector.ConnectorConfig) (string, error) {
	path := cfg.Extra["path"]
	if path == "" {
		return "", fmt.Errorf("file connector: missing required config key \"path\" in Extra")
	}
	return path, nil
}

func toRawLog(path, line string) model.RawLog {
	return model.RawLog{
		Timestamp: time.Now(),
		Source:    "file",
		Raw:       line,
		Metadata:  map[string]any{"path": path},
	}
}

// Query reads every line of the file. Start and End are ignored since plain
// files carry no per-line timestamps; Limit caps the result.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLog, error) {
	path, err := pathFrom(cfg)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file connector: %w", err)
	}
	defer f.Close()

	var results []model.RawLog
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if params.Filter != "" && !strings.Contains(line, params.Filter) {
			continue
		}
		results = append(results, toRawLog(path, line))
		if params.Limit > 0 && len(results) >= params.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("file connector: %w", err)
	}
	return results, nil
}

// Stream tails the file, emitting existing lines first and then polling for
// appended content. Truncation resets the offset to the new end of file.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLog, error) {
	path, err := pathFrom(cfg)
	if err != nil {
		return nil, err
	}

	pollInterval := defaultPollInterval
	if raw := cfg.Extra["poll_interval"]; raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			pollInterval = d
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file connector: %w", err)
	}

	ch := make(chan model.RawLog, 64)
	go func() {
		defer close(ch)
		defer f.Close()

		offset := drain(ctx, f, path, 0, ch)

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := f.Stat()
				if err != nil {
					slog.Warn("stat error", "connector", "file", "path", path, "error", err)
					continue
				}
				if info.Size() < offset {
					// Truncated. Start over from the top.
					offset = 0
				}
				if info.Size() > offset {
					offset = drain(ctx, f, path, offset, ch)
				}
			}
		}
	}()

	return ch, nil
}

// drain reads complete lines from offset to EOF and returns the new offset.
// A trailing partial line (no newline yet) is left for the next poll.
func drain(ctx context.Context, f *os.File, path string, offset int64, ch chan<- model.RawLog) int64 {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		slog.Warn("seek error", "connector", "file", "path", path, "error", err)
		return offset
	}

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// Partial last line stays unread until the writer finishes it.
			return offset
		}
		offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}
		select {
		case ch <- toRawLog(path, line):
		case <-ctx.Done():
			return offset
		}
	}
}
