package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://www.example.com/a", "example.com/a"},
		{"http://example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"Example.COM", "example.com"},
		{"  example.com  ", "example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.input), "input %q", tt.input)
	}
}

func TestIsValidException(t *testing.T) {
	tests := []struct {
		name      string
		block     string
		exception string
		valid     bool
	}{
		{"Subdomain", "youtube.com", "music.youtube.com", true},
		{"Sub-path", "youtube.com", "youtube.com/education", true},
		{"Same pattern", "youtube.com", "youtube.com", true},
		{"Scheme and www stripped", "https://www.youtube.com", "music.youtube.com", true},
		{"Wildcard block pattern", "*.youtube.com", "music.youtube.com", true},
		{"Unrelated domain", "youtube.com", "vimeo.com", false},
		{"Empty exception", "youtube.com", "", false},
		{"Empty block", "", "youtube.com", false},
		// Containment is deliberately loose: this false positive is
		// accepted behavior, not a bug.
		{"Loose containment false positive", "youtube.com", "notyoutube.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidException(tt.block, tt.exception))
		})
	}
}

func TestBuildMatchCondition(t *testing.T) {
	cond := BuildMatchCondition("*.youtube.com", []string{"music.youtube.com", "https://www.youtube.com/education"})
	assert.Equal(t, "youtube.com", cond.Include)
	assert.Equal(t, []string{"music.youtube.com", "youtube.com/education"}, cond.Excludes)
}

func TestBuildMatchCondition_NoExceptions(t *testing.T) {
	cond := BuildMatchCondition("https://www.reddit.com", nil)
	assert.Equal(t, "reddit.com", cond.Include)
	assert.Empty(t, cond.Excludes)
}
