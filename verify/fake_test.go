package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ysmood/gson"

	"github.com/use-agent/listingcheck/browser"
	"github.com/use-agent/listingcheck/locator"
)

// fakeDOM maps a locator string to the elements it matches.
type fakeDOM map[string][]*fakeElement

type fakeElement struct {
	session  *fakeSession
	text     string
	attrs    map[string]string
	disabled bool
	children fakeDOM
	onClick  func()

	typed   string
	pressed []browser.Key
	clicks  int
}

func (e *fakeElement) Click(context.Context) error {
	e.clicks++
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Type(_ context.Context, text string) error {
	e.typed += text
	return nil
}

func (e *fakeElement) Press(_ context.Context, key browser.Key) error {
	e.pressed = append(e.pressed, key)
	return nil
}

func (e *fakeElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) FindAll(_ context.Context, loc locator.Locator) ([]browser.Element, error) {
	return toElements(e.children[loc.String()]), nil
}

type fakeSession struct {
	title     string
	dom       fakeDOM
	onNav     func(url string)
	navigated []string
	waits     []browser.Condition
	closed    bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigated = append(s.navigated, url)
	if s.onNav != nil {
		s.onNav(url)
	}
	return nil
}

func (s *fakeSession) Title(context.Context) (string, error) { return s.title, nil }

func (s *fakeSession) Find(_ context.Context, loc locator.Locator) (browser.Element, bool, error) {
	els := s.dom[loc.String()]
	if len(els) == 0 {
		return nil, false, nil
	}
	return els[0], true, nil
}

func (s *fakeSession) FindAll(_ context.Context, loc locator.Locator) ([]browser.Element, error) {
	return toElements(s.dom[loc.String()]), nil
}

func (s *fakeSession) WaitFor(ctx context.Context, cond browser.Condition, timeout time.Duration) (browser.Element, error) {
	s.waits = append(s.waits, cond)
	els := s.dom[cond.Locator.String()]
	if len(els) > 0 {
		el := els[0]
		switch {
		case cond.Kind == browser.CondClickable && el.disabled:
		case cond.Kind == browser.CondTextContains && !strings.Contains(el.text, cond.Text):
		default:
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", browser.ErrWaitTimeout, cond)
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func toElements(els []*fakeElement) []browser.Element {
	out := make([]browser.Element, len(els))
	for i, e := range els {
		out[i] = e
	}
	return out
}

// Locators shared by the fakes and the scenarios under test.
var testLocators = SearchLocators{
	CategoryDropdown:  locator.MustParse("#category-toggle"),
	BuyOption:         locator.MustParse("#buy-option"),
	LocationInput:     locator.MustParse("#location-input"),
	AutocompleteFirst: locator.MustParse("#autocomplete li:first-child"),
	FindButton:        locator.MustParse("link:Find"),
	Banner:            locator.MustParse("#banner .close"),
	PageSummary:       locator.MustParse(".summary"),
	Pages: PageLocators{
		PageReady: locator.MustParse(".deal"),
		Container: locator.MustParse("#results"),
		Payload:   locator.MustParse(`script[type="application/ld+json"]`),
		NextPage:  locator.MustParse("#next"),
	},
}

func payload(locality string) string {
	return gson.New(map[string]any{
		"@type":   "Apartment",
		"address": map[string]any{"addressLocality": locality},
	}).JSON("", "")
}

func payloads(n int, locality string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = payload(locality)
	}
	return out
}

type siteFake struct {
	*fakeSession

	home    fakeDOM
	results []fakeDOM
	page    int

	input *fakeElement
	find  *fakeElement
}

type siteOptions struct {
	title        string
	summary      string
	pages        [][]string
	noNext       int // page (1-based) without a next control
	noContainer  int // page without a results container
	autocomplete string
	banner       bool
}

// newSiteFake builds a session that behaves like a listing site: the find
// button opens page 1, each next control opens the following page and the
// page after the last one has no page-ready marker.
func newSiteFake(o siteOptions) *siteFake {
	if o.title == "" {
		o.title = "Listings"
	}
	f := &siteFake{fakeSession: &fakeSession{title: o.title}}
	l := testLocators

	f.input = &fakeElement{}
	f.find = &fakeElement{text: "Find", onClick: func() { f.show(1) }}
	f.home = fakeDOM{
		l.CategoryDropdown.String():  {{}},
		l.BuyOption.String():         {{}},
		l.LocationInput.String():     {f.input},
		l.AutocompleteFirst.String(): {{text: o.autocomplete}},
		l.FindButton.String():        {f.find},
	}

	for i, items := range o.pages {
		index := i + 1
		container := &fakeElement{children: fakeDOM{}}
		for _, p := range items {
			container.children[l.Pages.Payload.String()] = append(container.children[l.Pages.Payload.String()],
				&fakeElement{attrs: map[string]string{"innerHTML": p}})
		}
		dom := fakeDOM{
			l.PageSummary.String():     {{text: o.summary}},
			l.Pages.PageReady.String(): {{text: "DEAL OF THE WEEK"}},
		}
		if index != o.noContainer {
			dom[l.Pages.Container.String()] = []*fakeElement{container}
		}
		if index != o.noNext {
			dom[l.Pages.NextPage.String()] = []*fakeElement{{onClick: func() { f.show(index + 1) }}}
		}
		if o.banner && index == 1 {
			dom[l.Banner.String()] = []*fakeElement{{}}
		}
		f.results = append(f.results, dom)
	}

	f.onNav = func(string) { f.dom = f.home; f.page = 0 }
	return f
}

func (f *siteFake) show(page int) {
	f.page = page
	if page > len(f.results) {
		f.dom = fakeDOM{testLocators.PageSummary.String(): {{text: "no more results"}}}
		return
	}
	f.dom = f.results[page-1]
}
