package testsite

import (
	"strings"

	"github.com/use-agent/listingcheck/config"
	"github.com/use-agent/listingcheck/links"
	"github.com/use-agent/listingcheck/models"
)

// Scenario returns a scenario document that targets a site served at
// baseURL with the given options.
func Scenario(baseURL string, opts Options) *config.Scenario {
	opts = opts.withDefaults()
	return &config.Scenario{
		Name:      config.DefaultTestName,
		TestedURL: strings.TrimRight(baseURL, "/") + "/",
		Title:     opts.Title,
		Location:  opts.Location,
		Browsers: []models.Capability{
			{"browserName": "chrome", "headless": true},
			{"browserName": "chrome", "headless": true, "windowSize": "1280x800"},
		},
		Locators: config.Locators{
			CategoryDropdown:  "#category-toggle",
			BuyOption:         "#buy-option",
			LocationInput:     "#location-input",
			AutocompleteFirst: "#autocomplete li:first-child",
			FindButton:        "link:Find",
			Banner:            "#banner .close",
			PageSummary:       ".summary",
			PageReady:         ".deal",
			ResultsContainer:  "#results",
			Payload:           `script[type="application/ld+json"]`,
			NextPage:          "#next",
			ToRent:            "#to-rent",
			AllLinks:          "#popular a",
		},
		LinkAudit: links.DefaultPattern,
	}
}
