package verify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/listingcheck/browser"
	"github.com/use-agent/listingcheck/models"
)

func newSearch(f *siteFake) *SearchResults {
	return &SearchResults{
		Session:  f,
		URL:      "https://listings.example/",
		Title:    "Listings",
		Location: "Dubai Marina",
		Locators: testLocators,
		Timeout:  time.Second,
		Promoted: 1,
	}
}

func codes(r *models.ScenarioReport) []string {
	var out []string
	for _, f := range r.Failures {
		out = append(out, f.Code)
	}
	return out
}

func TestSearchResults_TwoFullPages(t *testing.T) {
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 48 Apartments for sale in Dubai Marina",
		autocomplete: "Dubai Marina",
		banner:       true,
		pages:        [][]string{payloads(25, "Dubai Marina"), payloads(25, "dubai marina")},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed(), "failures: %+v", report.Failures)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 50, report.Validated)
	assert.Equal(t, []int{1, 24, 48}, report.Summary)

	assert.Equal(t, []string{"https://listings.example/"}, f.navigated)
	assert.Equal(t, "Dubai Marina", f.input.typed)
	assert.Equal(t, []browser.Key{browser.KeyEnter}, f.input.pressed)
	assert.Equal(t, 1, f.find.clicks)
	assert.Equal(t, 3, f.page, "walked onto the empty page after the last one")
}

func TestSearchResults_ItemsWithoutAddressAreSkipped(t *testing.T) {
	page := append(payloads(25, "Dubai Marina"), `{"@type": "Organization"}`, `{"address": {"streetAddress": "x"}}`)
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 24 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{page},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed(), "failures: %+v", report.Failures)
	assert.Equal(t, 25, report.Validated)
}

func TestSearchResults_WrongLocality(t *testing.T) {
	page := payloads(25, "Dubai Marina")
	page[7] = payload("Jumeirah Village Circle")
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 24 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{page},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, models.ErrCodeAssertion, report.Failures[0].Code)
	assert.Equal(t, 1, report.Failures[0].Page)
	assert.Contains(t, report.Failures[0].Message, "Jumeirah Village Circle")
	assert.Equal(t, 25, report.Validated)
}

func TestSearchResults_MalformedPayload(t *testing.T) {
	page := payloads(25, "Dubai Marina")
	page[3] = `{"address": {`
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 24 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{page},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	// The broken item is reported and is missing from the count.
	assert.Equal(t, []string{models.ErrCodeMalformedData, models.ErrCodeAssertion}, codes(report))
	assert.Equal(t, 24, report.Validated)
}

func TestSearchResults_CountMismatch(t *testing.T) {
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 48 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{payloads(25, "Dubai Marina"), payloads(26, "Dubai Marina")},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Page)
	assert.Contains(t, report.Failures[0].Message, "51 listings validated after page 2, want 50")
}

func TestSearchResults_PromotedOverride(t *testing.T) {
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 48 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{payloads(24, "Dubai Marina"), payloads(24, "Dubai Marina")},
	})
	v := newSearch(f)
	v.Promoted = 0

	report, err := v.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Passed(), "failures: %+v", report.Failures)
	assert.Equal(t, 48, report.Validated)
}

func TestSearchResults_AutocompleteTimeoutIsFatal(t *testing.T) {
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 24 results",
		autocomplete: "Dubai Hills",
		pages:        [][]string{payloads(25, "Dubai Marina")},
	})

	_, err := newSearch(f).Run(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodePreconditionTimeout))
	assert.Zero(t, f.find.clicks, "search must not be submitted")
}

func TestSearchResults_PaginationAnomalyIsRecorded(t *testing.T) {
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 48 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{payloads(25, "Dubai Marina"), payloads(25, "Dubai Marina")},
		noNext:       2,
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, models.ErrCodePaginationAnomaly, report.Failures[0].Code)
	assert.Equal(t, 2, report.Failures[0].Page)
	assert.Equal(t, 50, report.Validated)
}

func TestSearchResults_NonStringLocalityIsCounted(t *testing.T) {
	page := payloads(22, "Dubai Marina")
	page = append(page,
		`{"address": {"addressLocality": null}}`,
		`{"address": {"addressLocality": {"name": "Dubai Marina"}}}`,
		`{"address": {"addressLocality": ["Dubai Marina"]}}`,
	)
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 24 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{page},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, report.Validated)
	require.Equal(t, []string{models.ErrCodeAssertion, models.ErrCodeAssertion, models.ErrCodeAssertion}, codes(report))
	assert.Contains(t, report.Failures[0].Message, "item 23: location null is not a string")
	assert.Contains(t, report.Failures[1].Message, "item 24")
	assert.Contains(t, report.Failures[2].Message, "item 25")
}

func TestSearchResults_ShortPageWithoutNext(t *testing.T) {
	f := newSiteFake(siteOptions{
		summary:      "1 - 24 of 48 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{payloads(25, "Dubai Marina"), payloads(20, "Dubai Marina")},
		noNext:       2,
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{models.ErrCodeAssertion, models.ErrCodePaginationAnomaly}, codes(report))
	assert.Contains(t, report.Failures[0].Message, "45 listings validated after page 2, want 50")
	assert.Equal(t, 2, report.Failures[0].Page)
	assert.Equal(t, 45, report.Validated)
}

func TestSearchResults_ShortSummary(t *testing.T) {
	f := newSiteFake(siteOptions{
		summary:      "Showing 25 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{payloads(25, "Dubai Marina"), payloads(3, "Dubai Marina")},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{models.ErrCodeAssertion}, codes(report))
	assert.Equal(t, 28, report.Validated)
}

func TestSearchResults_WrongTitle(t *testing.T) {
	f := newSiteFake(siteOptions{
		title:        "Something else",
		summary:      "1 - 24 of 24 results",
		autocomplete: "Dubai Marina",
		pages:        [][]string{payloads(25, "Dubai Marina")},
	})

	report, err := newSearch(f).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Message, "wrong title")
	assert.Equal(t, 25, report.Validated)
}

func TestSearchResults_MissingControlEndsScenario(t *testing.T) {
	f := newSiteFake(siteOptions{autocomplete: "Dubai Marina"})
	delete(f.home, testLocators.BuyOption.String())

	_, err := newSearch(f).Run(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCodeBrowser))
}

func TestTally(t *testing.T) {
	var tally Tally
	for range 3 {
		tally.Add()
	}
	assert.Equal(t, 3, tally.Count())
}
