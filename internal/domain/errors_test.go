package domain_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"ipanalyzer/internal/domain"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short", "quota exceeded", 200, "quota exceeded"},
		{"exact", "abcd", 4, "abcd"},
		{"ascii cut", "abcdef", 4, "abcd..."},
		{"cut inside two byte rune", "abcé", 4, "abc..."},
		{"cut inside three byte rune", "ab€cd", 3, "ab..."},
		{"cut inside four byte rune", "a🌍b", 3, "a..."},
		{"cut after rune", "ab€cd", 5, "ab€..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.Excerpt(tt.in, tt.maxLen)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestExcerpt_LongProviderBody(t *testing.T) {
	body := strings.Repeat("错误", 200)

	got := domain.Excerpt(body, 500)

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 503)
	assert.True(t, strings.HasPrefix(body, strings.TrimSuffix(got, "...")))
}
