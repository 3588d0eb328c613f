// Package links classifies outbound links and checks that they resolve.
package links

import (
	"net/url"
	"strings"
)

// Pattern is an action/type/location path triple such as
// "to-rent/apartments/dubai".
type Pattern struct {
	Action   string `json:"action"`
	Type     string `json:"type"`
	Location string `json:"location"`
}

// DefaultPattern selects Dubai apartments to rent.
var DefaultPattern = Pattern{Action: "to-rent", Type: "apartments", Location: "dubai"}

// Match reports whether rawURL contains the pattern's segments.
func (p Pattern) Match(rawURL string) bool {
	return Matches(rawURL, p.Action, p.Type, p.Location)
}

func (p Pattern) String() string {
	return p.Action + "/" + p.Type + "/" + p.Location
}

// Matches reports whether the first path segment equal to action is
// immediately followed by typ and then location.
func Matches(rawURL, action, typ, location string) bool {
	segs := pathSegments(rawURL)
	for i, s := range segs {
		if s != action {
			continue
		}
		if i+2 >= len(segs) {
			return false
		}
		return segs[i+1] == typ && segs[i+2] == location
	}
	return false
}

func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Path == "" && u.Opaque == "") {
		return strings.Split(rawURL, "/")
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return strings.Split(p, "/")
}
