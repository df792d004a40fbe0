// Package stdin reads logs from standard input, one entry per line.
package stdin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/crimson-sun/sawmill/internal/connector"
	"github.com/crimson-sun/sawmill/internal/model"
)

func init() {
	connector.Register("stdin", func() connector.Connector {
		return &Connector{Reader: os.Stdin}
	})
}

// Connector reads log lines from Reader until EOF. The registry wires it to
// os.Stdin; tests substitute their own reader.
type Connector struct {
	Reader io.Reader
}

func toRawLog(line string) model.RawLog {
	return model.RawLog{
		Timestamp: time.Now(),
		Source:    "stdin",
		Raw:       line,
	}
}

// Stream reads lines until EOF and closes the channel.
func (c *Connector) Stream(ctx context.Context, cfg connector.ConnectorConfig) (<-chan model.RawLog, error) {
	ch := make(chan model.RawLog, 64)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(c.Reader)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			select {
			case ch <- toRawLog(line):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Query reads all lines up front, which lets piped input work in one-shot
// mode. Filter and Limit apply; the time range is ignored.
func (c *Connector) Query(ctx context.Context, cfg connector.ConnectorConfig, params connector.QueryParams) ([]model.RawLog, error) {
	var results []model.RawLog
	scanner := bufio.NewScanner(c.Reader)
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
		results = append(results, toRawLog(line))
		if params.Limit > 0 && len(results) >= params.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stdin connector: %w", err)
	}
	return results, nil
}
