// Package verify holds the two verification scenarios and the pagination
// state machine they share.
package verify

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/use-agent/listingcheck/browser"
	"github.com/use-agent/listingcheck/listing"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
)

// State is a pagination walker state.
type State int

const (
	AwaitingPageReady State = iota
	ExtractingItems
	AdvancingPage
	Exhausted
)

func (s State) String() string {
	switch s {
	case AwaitingPageReady:
		return "awaiting_page_ready"
	case ExtractingItems:
		return "extracting_items"
	case AdvancingPage:
		return "advancing_page"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PageLocators locate the pagination elements of a results page.
type PageLocators struct {
	// PageReady is the marker whose presence means the page has rendered.
	PageReady locator.Locator
	// Container holds the item payloads.
	Container locator.Locator
	// Payload selects the payload elements inside Container.
	Payload  locator.Locator
	NextPage locator.Locator
}

// Walker pages through search results. There is no explicit last-page
// signal: the page-ready marker failing to appear within the timeout ends
// the walk.
//
// A Walker is not safe for concurrent use.
type Walker struct {
	session browser.Session
	loc     PageLocators
	timeout time.Duration

	state State
	page  int
	log   *slog.Logger
}

// NewWalker creates a walker positioned before the first results page.
func NewWalker(s browser.Session, loc PageLocators, timeout time.Duration, log *slog.Logger) *Walker {
	if log == nil {
		log = slog.Default()
	}
	return &Walker{session: s, loc: loc, timeout: timeout, log: log}
}

// State returns the current state.
func (w *Walker) State() State { return w.state }

// PageIndex is the 1-based index of the last page returned by Next.
func (w *Walker) PageIndex() int { return w.page }

// Page is one results page.
type Page struct {
	Index int

	elements []browser.Element
	consumed bool
}

// Len is the number of payload elements on the page.
func (p *Page) Len() int { return len(p.elements) }

// Item is one parsed payload. Err is set when the payload could not be read
// or parsed; Record is then empty.
type Item struct {
	Position int
	Record   listing.Record
	Err      error
}

// Items yields the page's items in document order, reading and parsing each
// payload as it goes. A page's items can be ranged over once; later ranges
// yield nothing.
func (p *Page) Items(ctx context.Context) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		if p.consumed {
			return
		}
		p.consumed = true
		for i, el := range p.elements {
			item := Item{Position: i + 1}
			raw, _, err := el.Attribute(ctx, "innerHTML")
			if err != nil {
				item.Err = err
			} else {
				item.Record, item.Err = listing.Parse(raw)
			}
			if !yield(item) {
				return
			}
		}
	}
}

// Next returns the next results page, or nil once the walk is exhausted.
// If the previous page was not advanced by the caller, Next advances first.
// Exhaustion is not an error; a missing next-page control or results
// container after the page-ready marker is a PAGINATION_ANOMALY.
func (w *Walker) Next(ctx context.Context) (*Page, error) {
	switch w.state {
	case Exhausted:
		return nil, nil
	case ExtractingItems, AdvancingPage:
		if err := w.Advance(ctx); err != nil {
			return nil, err
		}
	}

	_, err := w.session.WaitFor(ctx, browser.Present(w.loc.PageReady), w.timeout)
	if errors.Is(err, browser.ErrWaitTimeout) {
		w.state = Exhausted
		w.log.Info("pagination exhausted", "pages", w.page)
		return nil, nil
	}
	if err != nil {
		w.state = Exhausted
		return nil, err
	}

	container, err := w.session.WaitFor(ctx, browser.Present(w.loc.Container), w.timeout)
	if err != nil {
		w.state = Exhausted
		if errors.Is(err, browser.ErrWaitTimeout) {
			return nil, models.NewVerifyError(models.ErrCodePaginationAnomaly,
				fmt.Sprintf("page %d: page-ready marker present but results container %s missing", w.page+1, w.loc.Container), err)
		}
		return nil, err
	}

	elements, err := container.FindAll(ctx, w.loc.Payload)
	if err != nil {
		w.state = Exhausted
		return nil, err
	}

	w.page++
	w.state = ExtractingItems
	w.log.Debug("results page ready", "page", w.page, "items", len(elements))
	return &Page{Index: w.page, elements: elements}, nil
}

// Advance actions the next-page control of the current page. It is a no-op
// unless a page is being extracted.
func (w *Walker) Advance(ctx context.Context) error {
	if w.state != ExtractingItems && w.state != AdvancingPage {
		return nil
	}
	w.state = AdvancingPage

	next, err := w.session.WaitFor(ctx, browser.Clickable(w.loc.NextPage), w.timeout)
	if err != nil {
		w.state = Exhausted
		if errors.Is(err, browser.ErrWaitTimeout) {
			return models.NewVerifyError(models.ErrCodePaginationAnomaly,
				fmt.Sprintf("page %d: next-page control %s not actionable within %s", w.page, w.loc.NextPage, w.timeout), err)
		}
		return err
	}
	if err := next.Click(ctx); err != nil {
		w.state = Exhausted
		return err
	}

	w.state = AwaitingPageReady
	return nil
}
