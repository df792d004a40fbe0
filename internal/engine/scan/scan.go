// Package scan extracts severity levels and component names from raw log
// lines and accumulates batch statistics. It is a lexical pass: the numbers
// it produces are exact and travel on the report next to the model's
// free-text analysis.
package scan

import (
	"strings"

	"github.com/crimson-sun/sawmill/internal/model"
)

// Level is a normalized log severity.
type Level int

const (
	Unknown Level = iota
	Debug
	Info
	Warning
	Error
	Critical
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

var levelTokens = map[string]Level{
	"trace":    Debug,
	"debug":    Debug,
	"info":     Info,
	"notice":   Info,
	"warn":     Warning,
	"warning":  Warning,
	"err":      Error,
	"error":    Error,
	"fatal":    Critical,
	"critical": Critical,
	"crit":     Critical,
	"panic":    Critical,
	"alert":    Critical,
	"emerg":    Critical,
}

// DetectLevel finds the first severity token in a log line. Bracketed
// ("[ERROR]"), suffixed ("ERROR:"), and key=value ("level=error") forms are
// all recognized; matching is case-insensitive. Lines without a recognized
// token report Unknown.
func DetectLevel(line string) Level {
	for _, tok := range strings.Fields(line) {
		if lvl, ok := levelTokens[normalizeToken(tok)]; ok {
			return lvl
		}
	}
	return Unknown
}

// normalizeToken strips decoration from a candidate level token.
func normalizeToken(tok string) string {
	tok = strings.ToLower(tok)
	if v, ok := strings.CutPrefix(tok, "level="); ok {
		tok = v
	}
	if v, ok := strings.CutPrefix(tok, "severity="); ok {
		tok = v
	}
	return strings.Trim(tok, "[]():<>\"'")
}

// Component guesses the component named by a log line: the first
// identifier-looking token after the severity token. Returns "" when the
// line has no recognized severity or no plausible component.
func Component(line string) string {
	fields := strings.Fields(line)
	for i, tok := range fields {
		if _, ok := levelTokens[normalizeToken(tok)]; !ok {
			continue
		}
		if i+1 >= len(fields) {
			return ""
		}
		cand := strings.Trim(fields[i+1], "[]():\"'")
		cand = strings.TrimSuffix(cand, ":")
		if isIdentifier(cand) {
			return cand
		}
		return ""
	}
	return ""
}

// isIdentifier reports whether s looks like a component name rather than
// prose: letters, digits, and -_./ separators, starting with a letter.
func isIdentifier(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	first := s[0]
	if !(first >= 'a' && first <= 'z' || first >= 'A' && first <= 'Z') {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == '/':
		default:
			return false
		}
	}
	return true
}

// Stats runs the lexical pass over a batch and accumulates counts, affected
// components (from error-level and above lines, first-seen order), and the
// batch time range.
func Stats(raws []model.RawLog) model.Stats {
	s := model.Stats{TotalLines: len(raws)}
	seen := map[string]bool{}

	for _, raw := range raws {
		lvl := DetectLevel(raw.Raw)
		switch lvl {
		case Warning:
			s.WarningCount++
		case Error, Critical:
			s.ErrorCount++
			if lvl == Critical {
				s.CriticalCount++
			}
			if comp := Component(raw.Raw); comp != "" && !seen[comp] {
				seen[comp] = true
				s.CriticalComponents = append(s.CriticalComponents, comp)
			}
		}

		if !raw.Timestamp.IsZero() {
			if s.First.IsZero() || raw.Timestamp.Before(s.First) {
				s.First = raw.Timestamp
			}
			if raw.Timestamp.After(s.Last) {
				s.Last = raw.Timestamp
			}
		}
	}
	return s
}

// HasCritical reports whether any line in the batch is critical-level.
func HasCritical(raws []model.RawLog) bool {
	for _, raw := range raws {
		if DetectLevel(raw.Raw) == Critical {
			return true
		}
	}
	return false
}
