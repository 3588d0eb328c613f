package browser

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to protocol resource types.
var resourceTypes = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
}

// trackerDomains are third-party hosts that only slow result pages down.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"hotjar.com":            {},
	"criteo.com":            {},
	"taboola.com":           {},
	"outbrain.com":          {},
	"scorecardresearch.com": {},
	"segment.io":            {},
}

// resourceFilter decides which page requests are failed before they leave
// the browser. Script and document requests are never blocked: results and
// their payloads depend on them.
type resourceFilter struct {
	types        map[proto.NetworkResourceType]struct{}
	dropTrackers bool
}

func newResourceFilter(names []string, dropTrackers bool) *resourceFilter {
	f := &resourceFilter{
		types:        make(map[proto.NetworkResourceType]struct{}, len(names)),
		dropTrackers: dropTrackers,
	}
	for _, n := range names {
		if rt, ok := resourceTypes[n]; ok {
			f.types[rt] = struct{}{}
		}
	}
	return f
}

func (f *resourceFilter) empty() bool {
	return len(f.types) == 0 && !f.dropTrackers
}

func (f *resourceFilter) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := f.types[rt]; ok {
		return true
	}
	if !f.dropTrackers {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && isTracker(u.Hostname())
}

// isTracker checks host and each parent domain against trackerDomains.
func isTracker(host string) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			break
		}
		host = host[i+1:]
	}
	return false
}

// install mounts a hijack router on page. It returns nil when the filter
// blocks nothing; otherwise the caller must Stop the router.
func (f *resourceFilter) install(page *rod.Page) *rod.HijackRouter {
	if f.empty() {
		return nil
	}
	router := page.HijackRequests()
	_ = router.Add("*", "", func(h *rod.Hijack) {
		if f.blocks(h.Request.Type(), h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	// Run blocks until Stop.
	go router.Run()
	return router
}
