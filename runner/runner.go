// Package runner expands the capability matrix into test cases and runs
// both scenarios for every case, each case in its own browser session.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/listingcheck/browser"
	"github.com/use-agent/listingcheck/capability"
	"github.com/use-agent/listingcheck/config"
	"github.com/use-agent/listingcheck/links"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
	"github.com/use-agent/listingcheck/verify"
)

// OpenFunc opens the session a test case runs in.
type OpenFunc func(ctx context.Context, tc models.TestCase) (browser.Session, error)

// Options configure a run. Config and Scenario are required.
type Options struct {
	Config   *config.Config
	Scenario *config.Scenario

	// Open defaults to browser.Open with the configured engine.
	Open OpenFunc

	// Checker defaults to a links.Validator built from Config.Links.
	Checker verify.LinkChecker

	Log *slog.Logger
}

// Run executes every test case and returns their reports in case order.
//
// A PRECONDITION_TIMEOUT in any case cancels the whole run: Run then
// returns that error and no report. Configuration errors found before any
// case starts are returned the same way.
func Run(ctx context.Context, opts Options) (*models.RunReport, error) {
	if opts.Config == nil || opts.Scenario == nil {
		return nil, models.ConfigError("runner: config and scenario are required")
	}
	cfg, sc := opts.Config, opts.Scenario

	cases, err := capability.Expand(sc.Name, sc.Browsers)
	if err != nil {
		return nil, err
	}
	locs, err := compileLocators(sc.Locators)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{RunID: "run-" + uuid.New().String()}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run", report.RunID)

	open := opts.Open
	if open == nil {
		bopts := browser.Options{Browser: cfg.Browser, Links: cfg.Links, ControlURL: sc.ControlURL}
		open = func(ctx context.Context, tc models.TestCase) (browser.Session, error) {
			return browser.Open(ctx, cfg.Run.Engine, bopts, tc)
		}
	}
	checker := opts.Checker
	if checker == nil {
		checker = links.NewValidator(links.NewChromeClient(cfg.Links.Timeout), links.ValidatorOptions{
			UserAgent:         cfg.Links.UserAgent,
			RequestsPerSecond: cfg.Links.RequestsPerSecond,
			Burst:             cfg.Links.Burst,
		})
	}

	u := &unitRunner{
		doc:     sc,
		locs:    locs,
		timeout: sc.Wait(cfg.Run.WaitTimeout),
		open:    open,
		checker: checker,
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	workers := cfg.Run.MaxParallel
	if workers <= 0 || workers > len(cases) {
		workers = len(cases)
	}
	sem := make(chan struct{}, workers)
	report.Units = make([]*models.UnitReport, len(cases))

	log.Info("run started", "cases", len(cases), "workers", workers, "engine", cfg.Run.Engine)
	start := time.Now()

	var wg sync.WaitGroup
	for i, tc := range cases {
		wg.Add(1)
		go func(idx int, tc models.TestCase) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				report.Units[idx] = &models.UnitReport{Case: tc.Name, Err: context.Cause(ctx)}
				return
			}
			unit := u.run(ctx, tc, log.With("case", tc.Name))
			report.Units[idx] = unit
			if models.IsCode(unit.Err, models.ErrCodePreconditionTimeout) {
				cancel(unit.Err)
			}
		}(i, tc)
	}
	wg.Wait()

	if cause := context.Cause(ctx); models.IsCode(cause, models.ErrCodePreconditionTimeout) {
		log.Error("run aborted", "error", cause)
		return nil, cause
	}

	log.Info("run finished",
		"passed", report.Passed(),
		"failures", report.FailureCount(),
		"duration", time.Since(start),
	)
	return report, nil
}

// scenario is implemented by verify.SearchResults and verify.LinkAudit.
type scenario interface {
	Run(ctx context.Context) (*models.ScenarioReport, error)
}

type unitRunner struct {
	doc     *config.Scenario
	locs    scenarioLocators
	timeout time.Duration
	open    OpenFunc
	checker verify.LinkChecker
}

// run executes both scenarios sequentially in one session. The session is
// closed whatever the outcome.
func (u *unitRunner) run(ctx context.Context, tc models.TestCase, log *slog.Logger) *models.UnitReport {
	unit := &models.UnitReport{Case: tc.Name}

	sess, err := u.open(ctx, tc)
	if err != nil {
		log.Error("session bootstrap failed", "error", err)
		unit.Err = err
		return unit
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("session close failed", "error", err)
		}
	}()

	sc := u.doc
	scenarios := []scenario{
		&verify.SearchResults{
			Session:  sess,
			URL:      sc.TestedURL,
			Title:    sc.Title,
			Location: sc.Location,
			Locators: u.locs.search,
			Timeout:  u.timeout,
			Promoted: sc.Promoted(),
			Log:      log,
		},
		&verify.LinkAudit{
			Session:  sess,
			URL:      sc.TestedURL,
			Title:    sc.Title,
			ToRent:   u.locs.toRent,
			AllLinks: u.locs.allLinks,
			Pattern:  sc.LinkAudit,
			Checker:  u.checker,
			Timeout:  u.timeout,
			Log:      log,
		},
	}

	for _, s := range scenarios {
		rep, err := s.Run(ctx)
		if rep != nil {
			unit.Scenarios = append(unit.Scenarios, rep)
		}
		if err == nil {
			continue
		}
		if fatal(err) {
			log.Error("case aborted", "error", err)
			unit.Err = err
			return unit
		}
		// Other errors end the scenario, not the case.
		log.Warn("scenario ended early", "error", err)
		if rep != nil {
			rep.Failures = append(rep.Failures, models.ToFailure(err, 0))
		}
	}

	log.Info("case finished", "passed", unit.Passed())
	return unit
}

func fatal(err error) bool {
	return models.IsCode(err, models.ErrCodeConfiguration) ||
		models.IsCode(err, models.ErrCodePreconditionTimeout) ||
		errors.Is(err, context.Canceled)
}

type scenarioLocators struct {
	search   verify.SearchLocators
	toRent   locator.Locator
	allLinks locator.Locator
}

// compileLocators parses every locator string once for all cases.
func compileLocators(l config.Locators) (scenarioLocators, error) {
	var (
		out  scenarioLocators
		errs []error
	)
	parse := func(name, s string, optional bool) locator.Locator {
		if s == "" && optional {
			return locator.Locator{}
		}
		loc, err := locator.Parse(s)
		if err != nil {
			errs = append(errs, errors.New(name+": "+err.Error()))
		}
		return loc
	}

	out.search = verify.SearchLocators{
		CategoryDropdown:  parse("category_dropdown", l.CategoryDropdown, false),
		BuyOption:         parse("buy_option", l.BuyOption, false),
		LocationInput:     parse("location_input", l.LocationInput, false),
		AutocompleteFirst: parse("autocomplete_first", l.AutocompleteFirst, false),
		FindButton:        parse("find_button", l.FindButton, false),
		Banner:            parse("banner", l.Banner, true),
		PageSummary:       parse("page_summary", l.PageSummary, false),
		Pages: verify.PageLocators{
			PageReady: parse("page_ready", l.PageReady, false),
			Container: parse("results_container", l.ResultsContainer, false),
			Payload:   parse("payload", l.Payload, false),
			NextPage:  parse("next_page", l.NextPage, false),
		},
	}
	out.toRent = parse("to_rent", l.ToRent, false)
	out.allLinks = parse("all_links", l.AllLinks, false)

	if len(errs) > 0 {
		return scenarioLocators{}, models.NewVerifyError(models.ErrCodeConfiguration, "invalid locators", errors.Join(errs...))
	}
	return out, nil
}
