// Package config loads the runtime configuration from the environment and
// the scenario document from disk.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration.
type Config struct {
	Browser BrowserConfig
	Run     RunConfig
	Links   LinksConfig
	Log     LogConfig
}

// BrowserConfig controls how rod sessions are launched. Capability keys
// override these per test case.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ControlURL connects to an already running browser over CDP instead of
	// launching one. The scenario document may also set it.
	ControlURL string

	// Proxy is the default proxy URL for all sessions.
	Proxy string

	// Stealth injects the stealth evasions into every page.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block when a capability
	// sets blockResources. default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// NavigationTimeout bounds page.Navigate alone.
	NavigationTimeout time.Duration // default: 30s
}

// RunConfig controls scenario execution.
type RunConfig struct {
	// ScenarioPath is the scenario document to load.
	ScenarioPath string // default: "scenario.json"

	// Engine selects the session implementation: "rod" or "http".
	Engine string // default: "rod"

	// WaitTimeout bounds every explicit wait.
	WaitTimeout time.Duration // default: 30s

	// MaxParallel caps concurrently running test cases. 0 means one worker
	// per case.
	MaxParallel int // default: 0
}

// LinksConfig controls the link liveness checks.
type LinksConfig struct {
	// Timeout is the per-request timeout.
	Timeout time.Duration // default: 15s

	// RequestsPerSecond is the sustained request rate per host.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per host.
	Burst int // default: 5

	UserAgent string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:   Env("LISTINGCHECK_HEADLESS", true, strconv.ParseBool),
			NoSandbox:  Env("LISTINGCHECK_NO_SANDBOX", false, strconv.ParseBool),
			BrowserBin: os.Getenv("LISTINGCHECK_BROWSER_BIN"),
			ControlURL: os.Getenv("LISTINGCHECK_CONTROL_URL"),
			Proxy:      os.Getenv("LISTINGCHECK_PROXY"),
			Stealth:    Env("LISTINGCHECK_STEALTH", true, strconv.ParseBool),
			BlockedResourceTypes: Env("LISTINGCHECK_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}, List),
			NavigationTimeout: Env("LISTINGCHECK_NAV_TIMEOUT", 30*time.Second, time.ParseDuration),
		},
		Run: RunConfig{
			ScenarioPath: Env("LISTINGCHECK_SCENARIO", "scenario.json", Text),
			Engine:       Env("LISTINGCHECK_ENGINE", "rod", Text),
			WaitTimeout:  Env("LISTINGCHECK_WAIT_TIMEOUT", 30*time.Second, time.ParseDuration),
			MaxParallel:  Env("LISTINGCHECK_MAX_PARALLEL", 0, strconv.Atoi),
		},
		Links: LinksConfig{
			Timeout:           Env("LISTINGCHECK_LINK_TIMEOUT", 15*time.Second, time.ParseDuration),
			RequestsPerSecond: Env("LISTINGCHECK_LINK_RPS", 5.0, Float),
			Burst:             Env("LISTINGCHECK_LINK_BURST", 5, strconv.Atoi),
			UserAgent:         os.Getenv("LISTINGCHECK_USER_AGENT"),
		},
		Log: LogConfig{
			Level:  Env("LISTINGCHECK_LOG_LEVEL", "info", Text),
			Format: Env("LISTINGCHECK_LOG_FORMAT", "json", Text),
		},
	}
}

// Env returns the environment variable key converted by parse. Unset,
// empty and unparsable values yield fallback.
func Env[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

// Text is the identity parser for Env.
func Text(v string) (string, error) { return v, nil }

// Float parses a float64 for Env.
func Float(v string) (float64, error) { return strconv.ParseFloat(v, 64) }

// List splits a comma-separated value, dropping blank entries.
func List(v string) ([]string, error) {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}
