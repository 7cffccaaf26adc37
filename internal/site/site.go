// Package site tracks the blocked-site entries and the exception
// patterns carved out of them.
package site

import (
	"errors"
	"strings"
	"time"
)

var ErrInvalidException = errors.New("exception pattern is not more specific than the blocked pattern")

// Site is one blocked-site entry. Exceptions are patterns more specific
// than Pattern that stay reachable while the site itself is blocked.
type Site struct {
	ID         string    `json:"id"`
	Pattern    string    `json:"pattern"`
	Enabled    bool      `json:"enabled"`
	AddedAt    time.Time `json:"added_at"`
	BlockCount int       `json:"block_count"`
	Exceptions []string  `json:"exceptions,omitempty"`

	// DailyLimitMinutes, when non-nil, overrides the global budget
	// quota for this site.
	DailyLimitMinutes *float64 `json:"daily_limit_minutes,omitempty"`
}

// Normalize strips the scheme and a leading "www." from a pattern so
// "https://www.example.com/a" and "example.com/a" compare equal.
func Normalize(pattern string) string {
	p := strings.TrimSpace(strings.ToLower(pattern))
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
	}
	p = strings.TrimPrefix(p, "www.")
	return p
}

// stripWildcard removes a leading wildcard marker ("*." or "*") from a
// block pattern so it can be compared against concrete exceptions.
func stripWildcard(pattern string) string {
	p := strings.TrimPrefix(pattern, "*.")
	return strings.TrimPrefix(p, "*")
}

// IsValidException reports whether exceptionPattern is more specific
// than blockPattern. The check is deliberately loose substring
// containment: "mail.example.com" is a valid exception for
// "example.com", but so is "notexample.com". Tightening this to proper
// domain-label matching would reject exceptions existing installs rely
// on, so the loose behavior is kept.
func IsValidException(blockPattern, exceptionPattern string) bool {
	block := stripWildcard(Normalize(blockPattern))
	exception := Normalize(exceptionPattern)

	if block == "" || exception == "" {
		return false
	}
	return strings.Contains(exception, block)
}

// MatchCondition is the shape handed to the enforcement layer. When
// Excludes is non-empty the layer must apply "matches Include AND NOT
// matches any Exclude"; a plain wildcard filter on Include alone would
// swallow the exceptions.
type MatchCondition struct {
	Include  string   `json:"include"`
	Excludes []string `json:"excludes,omitempty"`
}

// BuildMatchCondition produces the predicate for one blocked site. The
// exclusion list is kept structurally separate from the inclusion so
// the enforcement layer can honor it.
func BuildMatchCondition(pattern string, exceptions []string) MatchCondition {
	cond := MatchCondition{Include: stripWildcard(Normalize(pattern))}
	for _, ex := range exceptions {
		cond.Excludes = append(cond.Excludes, Normalize(ex))
	}
	return cond
}

// MatchCondition returns the enforcement predicate for this site.
func (s *Site) MatchCondition() MatchCondition {
	return BuildMatchCondition(s.Pattern, s.Exceptions)
}
