// Package compactor fits a log batch into a prompt token budget by dropping
// low-severity lines. Lines are never split; errors are dropped last.
package compactor

import (
	"github.com/crimson-sun/sawmill/internal/engine/scan"
	"github.com/crimson-sun/sawmill/internal/model"
)

// Compactor trims batches to a token budget.
type Compactor struct {
	Budget int // token budget; 0 or negative means unlimited
}

// New creates a Compactor with the given token budget.
func New(budget int) *Compactor {
	return &Compactor{Budget: budget}
}

// Compact drops lines until the batch fits the budget, or until only
// error-level lines remain. Drop order: debug, then info/unknown, then
// warnings, oldest first within each class. Original line order is kept.
// A batch of errors alone may still exceed the budget; chunked analysis
// handles that case downstream.
func (c *Compactor) Compact(raws []model.RawLog) []model.RawLog {
	if c.Budget <= 0 || Tokens(raws) <= c.Budget {
		return raws
	}

	type classified struct {
		raw  model.RawLog
		lvl  scan.Level
		keep bool
	}
	lines := make([]classified, len(raws))
	total := 0
	for i, r := range raws {
		lines[i] = classified{raw: r, lvl: scan.DetectLevel(r.Raw), keep: true}
		total += EstimateTokens(r.Raw)
	}

	dropClasses := [][]scan.Level{
		{scan.Debug},
		{scan.Info, scan.Unknown},
		{scan.Warning},
	}
	for _, class := range dropClasses {
		if total <= c.Budget {
			break
		}
		for i := range lines {
			if total <= c.Budget {
				break
			}
			if !lines[i].keep || !levelIn(lines[i].lvl, class) {
				continue
			}
			lines[i].keep = false
			total -= EstimateTokens(lines[i].raw.Raw)
		}
	}

	result := make([]model.RawLog, 0, len(lines))
	for _, l := range lines {
		if l.keep {
			result = append(result, l.raw)
		}
	}
	return result
}

// Tokens estimates the total token count of a batch.
func Tokens(raws []model.RawLog) int {
	total := 0
	for _, r := range raws {
		total += EstimateTokens(r.Raw)
	}
	return total
}

func levelIn(lvl scan.Level, class []scan.Level) bool {
	for _, c := range class {
		if lvl == c {
			return true
		}
	}
	return false
}
