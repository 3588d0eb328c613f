package models

import (
	"encoding/json"
	"time"
)

// Scenario names used in reports and logs.
const (
	ScenarioSearchResults = "results_match_search_criteria"
	ScenarioLinkAudit     = "valid_links"
)

// Failure is one recorded, non-fatal failure inside a scenario run.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Page is the 1-based results page the failure belongs to, 0 otherwise.
	Page int `json:"page,omitempty"`
}

// CandidateLink is an outbound link seen during the link audit.
type CandidateLink struct {
	URL     string `json:"url"`
	Matches bool   `json:"matches"`

	// Validity is nil when the link was not checked (it did not match).
	Validity   *bool  `json:"validity,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ScenarioReport is the outcome of one scenario against one session.
type ScenarioReport struct {
	Name     string    `json:"name"`
	Failures []Failure `json:"failures,omitempty"`

	// Search results scenario.
	Pages     int   `json:"pages,omitempty"`
	Validated int   `json:"validated,omitempty"`
	Summary   []int `json:"summary,omitempty"`

	// Link audit scenario.
	Links []CandidateLink `json:"links,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Fail records a failure.
func (r *ScenarioReport) Fail(code, message string, page int) {
	r.Failures = append(r.Failures, Failure{Code: code, Message: message, Page: page})
}

// Passed reports whether no failure was recorded.
func (r *ScenarioReport) Passed() bool {
	return len(r.Failures) == 0
}

// UnitReport collects the scenarios run for one expanded test case.
type UnitReport struct {
	Case      string            `json:"case"`
	Scenarios []*ScenarioReport `json:"scenarios"`

	// Err is set when the unit was aborted (configuration or browser error).
	Err error `json:"-"`
}

// MarshalJSON renders Err as a message string.
func (u *UnitReport) MarshalJSON() ([]byte, error) {
	type plain UnitReport
	out := struct {
		*plain
		Error string `json:"error,omitempty"`
	}{plain: (*plain)(u)}
	if u.Err != nil {
		out.Error = u.Err.Error()
	}
	return json.Marshal(out)
}

// Passed reports whether the unit finished and every scenario passed.
func (u *UnitReport) Passed() bool {
	if u.Err != nil {
		return false
	}
	for _, s := range u.Scenarios {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// RunReport is the outcome of all units, in test case order.
type RunReport struct {
	RunID string        `json:"run_id"`
	Units []*UnitReport `json:"units"`
}

// Passed reports whether every unit passed.
func (r *RunReport) Passed() bool {
	for _, u := range r.Units {
		if !u.Passed() {
			return false
		}
	}
	return true
}

// FailureCount counts recorded failures plus aborted units.
func (r *RunReport) FailureCount() int {
	n := 0
	for _, u := range r.Units {
		if u.Err != nil {
			n++
		}
		for _, s := range u.Scenarios {
			n += len(s.Failures)
		}
	}
	return n
}
