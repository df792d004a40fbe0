// Package dedup collapses repeated log lines before they reach the prompt.
// Identical lines (after signature normalization) within a time window fold
// into one line annotated with a repeat count, preserving first-occurrence
// order. This keeps noisy retry storms from eating the token budget.
package dedup

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Config controls deduplication behavior.
type Config struct {
	Window time.Duration // grouping window (default 5s)
}

// Deduplicator collapses lines with identical signatures within a time window.
type Deduplicator struct {
	cfg Config
}

// New creates a Deduplicator with the given config.
func New(cfg Config) *Deduplicator {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Second
	}
	return &Deduplicator{cfg: cfg}
}

// group accumulates lines with the same signature.
type group struct {
	raw      model.RawLog
	count    int
	firstTS  time.Time
	latestTS time.Time
}

// Collapse folds lines with identical signatures within Window of each other.
// Returns lines in first-occurrence order; merged lines get a "(xN in dur)"
// suffix on the raw text.
func (d *Deduplicator) Collapse(raws []model.RawLog) []model.RawLog {
	if len(raws) == 0 {
		return nil
	}

	// Ordered map: preserve first-occurrence order.
	type groupEntry struct {
		key string
		grp *group
	}
	var order []*groupEntry
	groups := make(map[string]*groupEntry)

	for _, r := range raws {
		key := Signature(r.Raw)

		entry, exists := groups[key]
		if exists && r.Timestamp.Sub(entry.grp.firstTS) <= d.cfg.Window {
			// Within window, merge.
			entry.grp.count++
			if r.Timestamp.After(entry.grp.latestTS) {
				entry.grp.latestTS = r.Timestamp
			}
			continue
		}

		// New group: either new signature or outside window.
		ge := &groupEntry{key: key, grp: &group{
			raw:      r,
			count:    1,
			firstTS:  r.Timestamp,
			latestTS: r.Timestamp,
		}}
		groups[key] = ge
		order = append(order, ge)
	}

	result := make([]model.RawLog, 0, len(order))
	for _, entry := range order {
		r := entry.grp.raw
		if entry.grp.count > 1 {
			dur := entry.grp.latestTS.Sub(entry.grp.firstTS)
			r.Raw = fmt.Sprintf("%s (x%d in %s)", r.Raw, entry.grp.count, formatDuration(dur))
		}
		result = append(result, r)
	}
	return result
}

// Signature normalizes a log line into a dedup key: NFKC-folded, lowercased,
// with digit runs masked. Lines differing only in timestamps, counters, or
// IDs collapse to the same signature.
func Signature(line string) string {
	line = norm.NFKC.String(line)
	var b strings.Builder
	b.Grow(len(line))
	inDigits := false
	for _, r := range line {
		if unicode.IsDigit(r) {
			if !inDigits {
				b.WriteByte('#')
				inDigits = true
			}
			continue
		}
		inDigits = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// formatDuration produces a human-readable short duration string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
