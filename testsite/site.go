// Package testsite serves a small property-listing site whose pages carry
// the same structure the verifiers expect from a real one. Options inject
// the defects the verifiers must detect.
package testsite

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ysmood/gson"
)

// Options shape the generated site. Zero values take defaults.
type Options struct {
	Title    string // default "Dubai Property Listings"
	Location string // default "Dubai Marina"

	// PerPage is the regular item quota; one promoted item is added on
	// every page.
	PerPage int // default 24

	// Pages is the number of pages with results. Page Pages+1 exists but is
	// empty, as on the real site.
	Pages int // default 3

	// Page numbers (1-based) that carry a defect. 0 disables.
	WrongLocalityPage int
	MalformedPage     int
	MissingNextPage   int

	NoAutocomplete bool
	NoBanner       bool

	// DeadLink adds a to-rent/apartments/dubai link that answers 404.
	DeadLink bool
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = "Dubai Property Listings"
	}
	if o.Location == "" {
		o.Location = "Dubai Marina"
	}
	if o.PerPage <= 0 {
		o.PerPage = 24
	}
	if o.Pages <= 0 {
		o.Pages = 3
	}
	return o
}

// DeadLinkPath is the listing path that answers 404 when DeadLink is set.
const DeadLinkPath = "/to-rent/apartments/dubai/closed-listing"

var rentLinks = []string{
	"/to-rent/apartments/dubai/dubai-marina",
	"/to-rent/apartments/dubai/jumeirah-village-circle",
	"/to-rent/villas/dubai/arabian-ranches",
	"/for-sale/apartments/dubai/downtown-dubai",
	"/to-rent/apartments/abu-dhabi/al-reem-island",
}

var saleLinks = []string{
	"/for-sale/apartments/dubai/dubai-marina",
	"/for-sale/villas/dubai/palm-jumeirah",
}

// NewRouter builds the site.
func NewRouter(opts Options) *gin.Engine {
	opts = opts.withDefaults()
	s := &site{opts: opts}

	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(pages)

	r.GET("/", s.home)
	r.GET("/search", s.search)
	r.GET("/to-rent/*path", s.listing)
	r.GET("/for-sale/*path", s.listing)
	return r
}

type site struct {
	opts Options
}

func (s *site) home(c *gin.Context) {
	rent := c.Query("category") == "to-rent"

	var hrefs []string
	if rent {
		hrefs = append(hrefs, rentLinks...)
		if s.opts.DeadLink {
			hrefs = append(hrefs, DeadLinkPath)
		}
	} else {
		hrefs = saleLinks
	}

	var suggestions []string
	if !s.opts.NoAutocomplete {
		suggestions = []string{s.opts.Location, s.opts.Location + " Mall", "Dubai Hills Estate"}
	}

	c.HTML(http.StatusOK, "home", gin.H{
		"Title":       s.opts.Title,
		"Location":    s.opts.Location,
		"Suggestions": suggestions,
		"Links":       hrefs,
	})
}

func (s *site) search(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	o := s.opts

	data := gin.H{
		"Title":   o.Title,
		"Banner":  !o.NoBanner && page == 1,
		"Summary": fmt.Sprintf("%d - %d of %s Apartments for sale in %s", (page-1)*o.PerPage+1, page*o.PerPage, thousands(o.PerPage*o.Pages), o.Location),
	}
	if page <= o.Pages {
		data["Payloads"] = s.payloads(page)
		if page != o.MissingNextPage {
			q := c.Request.URL.Query()
			q.Set("page", strconv.Itoa(page+1))
			data["Next"] = "/search?" + q.Encode()
		}
	}
	c.HTML(http.StatusOK, "results", data)
}

// payloads renders one promoted and PerPage regular items, plus an
// organisation block that carries no address.
func (s *site) payloads(page int) []template.JS {
	o := s.opts
	out := make([]template.JS, 0, o.PerPage+2)

	out = append(out, template.JS(gson.New(map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     "Listings Inc.",
	}).JSON("", "")))

	for i := 0; i <= o.PerPage; i++ {
		locality := o.Location
		if page == o.WrongLocalityPage && i == 2 {
			locality = "Jumeirah Village Circle"
		}
		if page == o.MalformedPage && i == 3 {
			out = append(out, template.JS(`{"@type": "Apartment", "address": {`))
			continue
		}
		name := fmt.Sprintf("Apartment %d-%d", page, i)
		if i == 0 {
			name = "Deal of the week: " + name
		}
		out = append(out, template.JS(gson.New(map[string]any{
			"@context": "https://schema.org",
			"@type":    "Apartment",
			"name":     name,
			"address": map[string]any{
				"@type":           "PostalAddress",
				"addressLocality": locality,
				"addressRegion":   "Dubai",
			},
		}).JSON("", "")))
	}
	return out
}

func (s *site) listing(c *gin.Context) {
	if s.opts.DeadLink && c.Request.URL.Path == DeadLinkPath {
		c.String(http.StatusNotFound, "listing no longer available")
		return
	}
	c.HTML(http.StatusOK, "listing", gin.H{
		"Title": s.opts.Title,
		"Path":  c.Request.URL.Path,
	})
}

// thousands formats n with comma separators.
func thousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
