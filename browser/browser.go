// Package browser is the browser automation collaborator the verifiers drive.
//
// A Session is exclusively owned by one test case and used from a single
// goroutine. Two implementations exist: a rod-driven Chromium session and a
// static document session that fetches and parses HTML without a browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/use-agent/listingcheck/config"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
)

// ErrWaitTimeout is returned by WaitFor when the condition did not hold
// within the timeout.
var ErrWaitTimeout = errors.New("browser: wait timed out")

// Engine names accepted by Open.
const (
	EngineRod  = "rod"
	EngineHTTP = "http"
)

// Key is a special keyboard key.
type Key int

const (
	KeyEnter Key = iota + 1
	KeyEscape
	KeyTab
)

func (k Key) String() string {
	switch k {
	case KeyEnter:
		return "Enter"
	case KeyEscape:
		return "Escape"
	case KeyTab:
		return "Tab"
	default:
		return fmt.Sprintf("Key(%d)", int(k))
	}
}

// Session is one browser session.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)

	// Find returns the first matching element; ok is false when none match.
	Find(ctx context.Context, loc locator.Locator) (el Element, ok bool, err error)
	FindAll(ctx context.Context, loc locator.Locator) ([]Element, error)

	// WaitFor blocks until cond holds or timeout elapses, returning the
	// element the condition matched. On timeout the error is ErrWaitTimeout.
	WaitFor(ctx context.Context, cond Condition, timeout time.Duration) (Element, error)

	Close() error
}

// Element is a located element.
type Element interface {
	Click(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key Key) error

	// Attribute reads a named attribute. For href and src the resolved
	// absolute URL is returned, as a browser reports it.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	Text(ctx context.Context) (string, error)
	FindAll(ctx context.Context, loc locator.Locator) ([]Element, error)
}

// ConditionKind is the predicate a wait evaluates.
type ConditionKind int

const (
	CondPresent ConditionKind = iota
	CondClickable
	CondTextContains
)

// Condition is a wait predicate over one locator.
type Condition struct {
	Kind    ConditionKind
	Locator locator.Locator
	Text    string
}

// Present holds once an element matching loc is attached to the DOM.
func Present(loc locator.Locator) Condition {
	return Condition{Kind: CondPresent, Locator: loc}
}

// Clickable holds once an element matching loc is visible and enabled.
func Clickable(loc locator.Locator) Condition {
	return Condition{Kind: CondClickable, Locator: loc}
}

// TextContains holds once the element matching loc contains text.
func TextContains(loc locator.Locator, text string) Condition {
	return Condition{Kind: CondTextContains, Locator: loc, Text: text}
}

func (c Condition) String() string {
	switch c.Kind {
	case CondClickable:
		return fmt.Sprintf("clickable(%s)", c.Locator)
	case CondTextContains:
		return fmt.Sprintf("text(%s) contains %q", c.Locator, c.Text)
	default:
		return fmt.Sprintf("present(%s)", c.Locator)
	}
}

// Options configure session bootstrap.
type Options struct {
	Browser config.BrowserConfig
	Links   config.LinksConfig

	// ControlURL, when set, overrides Browser.ControlURL. The scenario
	// document's control_url lands here.
	ControlURL string
}

// Open starts a session for one test case using the named engine. The
// caller owns the session and must Close it.
func Open(ctx context.Context, engine string, opts Options, tc models.TestCase) (Session, error) {
	switch engine {
	case EngineRod, "":
		return openRod(ctx, opts, tc)
	case EngineHTTP:
		return openDocument(opts, tc), nil
	default:
		return nil, models.ConfigError("browser: unknown engine %q", engine)
	}
}

// categorizeError maps driver errors onto the error taxonomy.
func categorizeError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewVerifyError(models.ErrCodeBrowser, msg+": timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewVerifyError(models.ErrCodeBrowser, msg+": canceled", err)
	default:
		return models.NewVerifyError(models.ErrCodeBrowser, msg, err)
	}
}
