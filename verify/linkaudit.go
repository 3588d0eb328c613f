package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/listingcheck/browser"
	"github.com/use-agent/listingcheck/links"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
)

// LinkChecker produces a liveness verdict for a URL. *links.Validator
// implements it.
type LinkChecker interface {
	Check(ctx context.Context, rawURL string) links.Verdict
}

// LinkAudit opens the to-rent category, collects the outbound links that
// match Pattern and checks that every one of them resolves.
type LinkAudit struct {
	Session browser.Session
	URL     string
	Title   string

	ToRent   locator.Locator
	AllLinks locator.Locator
	Pattern  links.Pattern
	Checker  LinkChecker

	// Timeout bounds every wait.
	Timeout time.Duration

	// Concurrency caps simultaneous liveness checks. Default 4.
	Concurrency int

	Log *slog.Logger
}

// Run executes the audit. Every matching link is checked before any
// failure is recorded, so the report lists all dead links.
func (a *LinkAudit) Run(ctx context.Context) (*models.ScenarioReport, error) {
	start := time.Now()
	report := &models.ScenarioReport{Name: models.ScenarioLinkAudit}
	defer func() { report.Duration = time.Since(start) }()

	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("scenario", report.Name)

	if err := openAndCheckTitle(ctx, a.Session, a.URL, a.Title, report); err != nil {
		return report, err
	}
	if err := clickRequired(ctx, a.Session, a.ToRent, a.Timeout); err != nil {
		return report, err
	}

	anchors, err := a.Session.FindAll(ctx, a.AllLinks)
	if err != nil {
		return report, err
	}

	var matched []int
	for _, el := range anchors {
		href, ok, err := el.Attribute(ctx, "href")
		if err != nil {
			report.Failures = append(report.Failures, models.ToFailure(err, 0))
			continue
		}
		if !ok || href == "" {
			continue
		}
		link := models.CandidateLink{URL: href, Matches: a.Pattern.Match(href)}
		if link.Matches {
			matched = append(matched, len(report.Links))
		}
		report.Links = append(report.Links, link)
	}

	verdicts := a.checkAll(ctx, report.Links, matched)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for i, idx := range matched {
		v := verdicts[i]
		link := &report.Links[idx]
		valid := v.Valid
		link.Validity = &valid
		link.StatusCode = v.StatusCode
		if v.Err != nil {
			link.Error = v.Err.Error()
		}
		if !valid {
			report.Fail(models.ErrCodeAssertion, fmt.Sprintf("URL %s is not valid: %s", link.URL, link.Error), 0)
		}
	}

	log.Info("link audit finished",
		"pattern", a.Pattern.String(),
		"links", len(report.Links),
		"matched", len(matched),
		"failures", len(report.Failures),
	)
	return report, nil
}

// checkAll validates the candidates at the given indexes with bounded
// concurrency. Verdicts are returned in index order.
func (a *LinkAudit) checkAll(ctx context.Context, candidates []models.CandidateLink, idx []int) []links.Verdict {
	limit := a.Concurrency
	if limit <= 0 {
		limit = 4
	}
	sem := make(chan struct{}, limit)
	verdicts := make([]links.Verdict, len(idx))

	var wg sync.WaitGroup
	for i, ci := range idx {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			verdicts[i] = a.Checker.Check(ctx, url)
		}(i, candidates[ci].URL)
	}
	wg.Wait()
	return verdicts
}
