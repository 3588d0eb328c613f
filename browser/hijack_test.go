package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
)

func TestResourceFilter(t *testing.T) {
	f := newResourceFilter([]string{"Image", "Font", "Bogus"}, true)
	assert.False(t, f.empty())

	assert.True(t, f.blocks(proto.NetworkResourceTypeImage, "https://cdn.example.com/a.png"))
	assert.True(t, f.blocks(proto.NetworkResourceTypeFont, "https://cdn.example.com/a.woff2"))
	assert.False(t, f.blocks(proto.NetworkResourceTypeDocument, "https://www.example.com/"))
	assert.False(t, f.blocks(proto.NetworkResourceTypeScript, "https://www.example.com/app.js"))
	assert.True(t, f.blocks(proto.NetworkResourceTypeScript, "https://www.googletagmanager.com/gtm.js"))
	assert.True(t, f.blocks(proto.NetworkResourceTypeXHR, "https://stats.g.doubleclick.net/collect"))

	assert.True(t, newResourceFilter(nil, false).empty())
	assert.True(t, newResourceFilter([]string{"Script"}, false).empty())
}

func TestIsTracker(t *testing.T) {
	assert.True(t, isTracker("pagead2.googlesyndication.com"))
	assert.True(t, isTracker("HOTJAR.COM"))
	assert.False(t, isTracker("www.example.com"))
	assert.False(t, isTracker("notcriteo.com"))
	assert.False(t, isTracker(""))
}
