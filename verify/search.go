package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/listingcheck/browser"
	"github.com/use-agent/listingcheck/listing"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
)

// SearchLocators locate the search form and results page elements.
type SearchLocators struct {
	CategoryDropdown  locator.Locator
	BuyOption         locator.Locator
	LocationInput     locator.Locator
	AutocompleteFirst locator.Locator
	FindButton        locator.Locator

	// Banner is optional; a zero Locator skips the banner check.
	Banner      locator.Locator
	PageSummary locator.Locator

	Pages PageLocators
}

// Tally counts validated listings for one scenario run.
type Tally struct {
	n int
}

func (t *Tally) Add()       { t.n++ }
func (t *Tally) Count() int { return t.n }

// SearchResults searches for a location and checks that every listing on
// every results page is in that location and that each page carries the
// declared number of listings.
type SearchResults struct {
	Session  browser.Session
	URL      string
	Title    string
	Location string
	Locators SearchLocators

	// Timeout bounds every wait.
	Timeout time.Duration

	// Promoted is the number of promoted items per page on top of the
	// regular quota.
	Promoted int

	Log *slog.Logger
}

// Run executes the scenario. Assertion failures are recorded in the report.
// The error is non-nil only when the scenario could not continue; a missing
// autocomplete suggestion returns PRECONDITION_TIMEOUT.
func (v *SearchResults) Run(ctx context.Context) (*models.ScenarioReport, error) {
	start := time.Now()
	report := &models.ScenarioReport{Name: models.ScenarioSearchResults}
	defer func() { report.Duration = time.Since(start) }()

	log := v.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("scenario", report.Name)

	summary, err := v.search(ctx, report, log)
	if err != nil {
		return report, err
	}
	report.Summary = summary

	if _, ok := summary.ItemsPerPage(); !ok {
		report.Fail(models.ErrCodeAssertion,
			fmt.Sprintf("page summary %v has no items-per-page count; count checks skipped", []int(summary)), 1)
	}

	tally := &Tally{}
	walker := NewWalker(v.Session, v.Locators.Pages, v.Timeout, log)
	for {
		page, err := walker.Next(ctx)
		if err != nil {
			if models.IsCode(err, models.ErrCodePaginationAnomaly) {
				report.Fail(models.ErrCodePaginationAnomaly, err.Error(), walker.PageIndex()+1)
				break
			}
			return report, err
		}
		if page == nil {
			break
		}
		report.Pages = page.Index

		for item := range page.Items(ctx) {
			if item.Err != nil {
				report.Failures = append(report.Failures,
					models.ToFailure(fmt.Errorf("item %d: %w", item.Position, item.Err), page.Index))
				continue
			}
			node, ok := item.Record.Lookup("address", "addressLocality")
			if !ok {
				continue
			}
			tally.Add()
			locality, isString := node.Val().(string)
			switch {
			case !isString:
				report.Fail(models.ErrCodeAssertion,
					fmt.Sprintf("item %d: location %s is not a string, want %q", item.Position, node.JSON("", ""), v.Location), page.Index)
			case !strings.EqualFold(locality, v.Location):
				report.Fail(models.ErrCodeAssertion,
					fmt.Sprintf("item %d: wrong location %q, want %q", item.Position, locality, v.Location), page.Index)
			}
		}

		advErr := walker.Advance(ctx)
		if advErr != nil && !models.IsCode(advErr, models.ErrCodePaginationAnomaly) {
			return report, advErr
		}

		// The page's count is checked even when it cannot be left.
		if want, ok := summary.ExpectedTallyWith(page.Index, v.Promoted); ok && tally.Count() != want {
			report.Fail(models.ErrCodeAssertion,
				fmt.Sprintf("%d listings validated after page %d, want %d", tally.Count(), page.Index, want), page.Index)
		}
		if advErr != nil {
			report.Fail(models.ErrCodePaginationAnomaly, advErr.Error(), page.Index)
			break
		}
		log.Debug("page verified", "page", page.Index, "tally", tally.Count())
	}

	report.Validated = tally.Count()
	log.Info("search results verified",
		"pages", report.Pages,
		"validated", report.Validated,
		"failures", len(report.Failures),
	)
	return report, nil
}

// search drives the search form and returns the results page summary.
func (v *SearchResults) search(ctx context.Context, report *models.ScenarioReport, log *slog.Logger) (listing.PageSummary, error) {
	l := v.Locators
	if err := openAndCheckTitle(ctx, v.Session, v.URL, v.Title, report); err != nil {
		return nil, err
	}

	if err := clickRequired(ctx, v.Session, l.CategoryDropdown, v.Timeout); err != nil {
		return nil, err
	}
	if err := clickRequired(ctx, v.Session, l.BuyOption, v.Timeout); err != nil {
		return nil, err
	}

	input, err := required(ctx, v.Session, browser.Clickable(l.LocationInput), v.Timeout)
	if err != nil {
		return nil, err
	}
	if err := input.Type(ctx, v.Location); err != nil {
		return nil, err
	}

	_, err = v.Session.WaitFor(ctx, browser.TextContains(l.AutocompleteFirst, v.Location), v.Timeout)
	if errors.Is(err, browser.ErrWaitTimeout) {
		return nil, models.NewVerifyError(models.ErrCodePreconditionTimeout,
			fmt.Sprintf("autocomplete did not offer %q within %s", v.Location, v.Timeout), err)
	}
	if err != nil {
		return nil, err
	}
	if err := input.Press(ctx, browser.KeyEnter); err != nil {
		return nil, err
	}

	if err := clickRequired(ctx, v.Session, l.FindButton, v.Timeout); err != nil {
		return nil, err
	}

	if l.Banner.Value != "" {
		if banner, ok, err := v.Session.Find(ctx, l.Banner); err == nil && ok {
			if err := banner.Click(ctx); err != nil {
				log.Warn("banner dismissal failed", "error", err)
			}
		}
	}

	el, err := required(ctx, v.Session, browser.Present(l.PageSummary), v.Timeout)
	if err != nil {
		return nil, err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("page summary", "text", text)
	return listing.PageSummary(listing.ExtractNumbers(text)), nil
}

// openAndCheckTitle loads url and records a failure when the title is wrong.
func openAndCheckTitle(ctx context.Context, s browser.Session, url, want string, report *models.ScenarioReport) error {
	if err := s.Navigate(ctx, url); err != nil {
		return err
	}
	title, err := s.Title(ctx)
	if err != nil {
		return err
	}
	if title != want {
		report.Fail(models.ErrCodeAssertion, fmt.Sprintf("wrong title %q, want %q", title, want), 0)
	}
	return nil
}

// required waits for cond; a timeout means the page is not what the
// scenario expects and ends it.
func required(ctx context.Context, s browser.Session, cond browser.Condition, timeout time.Duration) (browser.Element, error) {
	el, err := s.WaitFor(ctx, cond, timeout)
	if errors.Is(err, browser.ErrWaitTimeout) {
		return nil, models.NewVerifyError(models.ErrCodeBrowser, "required element not found: "+cond.String(), err)
	}
	return el, err
}

func clickRequired(ctx context.Context, s browser.Session, loc locator.Locator, timeout time.Duration) error {
	el, err := required(ctx, s, browser.Present(loc), timeout)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}
