package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/use-agent/listingcheck/links"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
)

// DefaultTestName is the base name expanded test cases are derived from.
const DefaultTestName = "ListingSearch"

// Scenario is the scenario document: where to test, what to expect and how
// to find every element the scenarios touch. It is loaded once and read-only
// afterwards.
type Scenario struct {
	Name       string `json:"name,omitempty"`
	TestedURL  string `json:"tested_url"`
	ControlURL string `json:"control_url,omitempty"`
	Title      string `json:"title"`
	Location   string `json:"location"`

	// Browsers is the capability matrix; one test case per entry.
	Browsers []models.Capability `json:"browsers"`

	Locators  Locators      `json:"locators"`
	LinkAudit links.Pattern `json:"link_audit"`

	// PromotedPerPage is the number of promoted items counted on top of the
	// regular per-page quota. Defaults to 1.
	PromotedPerPage *int `json:"promoted_per_page,omitempty"`

	// WaitTimeout overrides the runtime wait bound, e.g. "30s".
	WaitTimeout string `json:"wait_timeout,omitempty"`
}

// Locators are the element locator strings referenced by both scenarios.
type Locators struct {
	CategoryDropdown  string `json:"category_dropdown"`
	BuyOption         string `json:"buy_option"`
	LocationInput     string `json:"location_input"`
	AutocompleteFirst string `json:"autocomplete_first"`
	FindButton        string `json:"find_button"`
	Banner            string `json:"banner,omitempty"`
	PageSummary       string `json:"page_summary"`
	PageReady         string `json:"page_ready"`
	ResultsContainer  string `json:"results_container"`
	Payload           string `json:"payload"`
	NextPage          string `json:"next_page"`
	ToRent            string `json:"to_rent"`
	AllLinks          string `json:"all_links"`
}

// LoadScenario reads and validates the scenario document at path.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewVerifyError(models.ErrCodeConfiguration, "read scenario "+path, err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document, filling defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, models.NewVerifyError(models.ErrCodeConfiguration, "decode scenario", err)
	}
	if s.Name == "" {
		s.Name = DefaultTestName
	}
	if s.LinkAudit == (links.Pattern{}) {
		s.LinkAudit = links.DefaultPattern
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks required fields and locator syntax. The returned error is
// a CONFIGURATION_ERROR naming every problem found.
func (s *Scenario) Validate() error {
	var errs []error
	missing := func(field, v string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
		}
	}

	missing("tested_url", s.TestedURL)
	missing("title", s.Title)
	missing("location", s.Location)
	if len(s.Browsers) == 0 {
		errs = append(errs, errors.New("browsers must list at least one capability"))
	}
	if s.PromotedPerPage != nil && *s.PromotedPerPage < 0 {
		errs = append(errs, errors.New("promoted_per_page must not be negative"))
	}
	if s.WaitTimeout != "" {
		if d, err := time.ParseDuration(s.WaitTimeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("wait_timeout %q is not a positive duration", s.WaitTimeout))
		}
	}
	p := s.LinkAudit
	if p.Action == "" || p.Type == "" || p.Location == "" {
		errs = append(errs, fmt.Errorf("link_audit needs action, type and location, got %q", p.String()))
	}

	for _, f := range s.Locators.fields() {
		if f.value == "" {
			if !f.optional {
				errs = append(errs, fmt.Errorf("locators.%s is required", f.name))
			}
			continue
		}
		if _, err := locator.Parse(f.value); err != nil {
			errs = append(errs, fmt.Errorf("locators.%s: %w", f.name, err))
		}
	}

	if len(errs) > 0 {
		return models.NewVerifyError(models.ErrCodeConfiguration, "invalid scenario", errors.Join(errs...))
	}
	return nil
}

// Promoted returns PromotedPerPage or its default.
func (s *Scenario) Promoted() int {
	if s.PromotedPerPage == nil {
		return 1
	}
	return *s.PromotedPerPage
}

// Wait returns the scenario wait override, or fallback.
func (s *Scenario) Wait(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.WaitTimeout); err == nil && d > 0 {
		return d
	}
	return fallback
}

type locatorField struct {
	name     string
	value    string
	optional bool
}

func (l Locators) fields() []locatorField {
	return []locatorField{
		{"category_dropdown", l.CategoryDropdown, false},
		{"buy_option", l.BuyOption, false},
		{"location_input", l.LocationInput, false},
		{"autocomplete_first", l.AutocompleteFirst, false},
		{"find_button", l.FindButton, false},
		{"banner", l.Banner, true},
		{"page_summary", l.PageSummary, false},
		{"page_ready", l.PageReady, false},
		{"results_container", l.ResultsContainer, false},
		{"payload", l.Payload, false},
		{"next_page", l.NextPage, false},
		{"to_rent", l.ToRent, false},
		{"all_links", l.AllLinks, false},
	}
}
