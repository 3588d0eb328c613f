package links

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://x/to-rent/apartments/dubai/123", true},
		{"https://x/to-rent/apartments/dubai", true},
		{"https://x/for-sale/apartments/dubai", false},
		{"https://x/to-rent/villas/dubai", false},
		{"https://x/to-rent/apartments/abu-dhabi", false},
		{"https://x/to-rent/apartments", false},
		{"https://x/to-rent", false},
		{"https://x/", false},
		{"", false},
		{"/to-rent/apartments/dubai/dubai-marina/", true},
		{"https://x/en/to-rent/apartments/dubai?page=2", true},
		// Only the first occurrence of the action segment is considered.
		{"https://x/to-rent/villas/to-rent/apartments/dubai", false},
		{"::not a url::/to-rent/apartments/dubai", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(tt.url, "to-rent", "apartments", "dubai"), "Matches(%q)", tt.url)
	}
}

func TestPattern(t *testing.T) {
	p := DefaultPattern
	assert.Equal(t, "to-rent/apartments/dubai", p.String())
	assert.True(t, p.Match("https://example.com/to-rent/apartments/dubai/jvc/"))

	sale := Pattern{Action: "for-sale", Type: "villas", Location: "sharjah"}
	assert.False(t, sale.Match("https://example.com/to-rent/apartments/dubai/"))
	assert.True(t, sale.Match("https://example.com/for-sale/villas/sharjah"))
}
