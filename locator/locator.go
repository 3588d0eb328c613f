// Package locator parses the element locator strings used in scenario
// documents.
//
// A locator is CSS unless it says otherwise:
//
//	div.results > script[type="application/ld+json"]   CSS
//	xpath://span[text()="DEAL OF THE WEEK"]             XPath
//	//a[@id="next"]                                     XPath (leading / or ()
//	link:Find                                          anchor by visible text
package locator

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Kind is the locator strategy.
type Kind int

const (
	CSS Kind = iota
	XPath
	LinkText
)

func (k Kind) String() string {
	switch k {
	case XPath:
		return "xpath"
	case LinkText:
		return "link"
	default:
		return "css"
	}
}

const (
	xpathPrefix = "xpath:"
	linkPrefix  = "link:"
)

// Locator is a parsed locator string.
type Locator struct {
	Kind  Kind
	Value string
}

// Parse classifies s and validates CSS selectors.
func Parse(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Locator{}, fmt.Errorf("locator: empty")
	case strings.HasPrefix(s, xpathPrefix):
		v := strings.TrimSpace(strings.TrimPrefix(s, xpathPrefix))
		if v == "" {
			return Locator{}, fmt.Errorf("locator: empty xpath in %q", s)
		}
		return Locator{Kind: XPath, Value: v}, nil
	case strings.HasPrefix(s, linkPrefix):
		v := strings.TrimSpace(strings.TrimPrefix(s, linkPrefix))
		if v == "" {
			return Locator{}, fmt.Errorf("locator: empty link text in %q", s)
		}
		return Locator{Kind: LinkText, Value: v}, nil
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "("), strings.HasPrefix(s, "./"):
		return Locator{Kind: XPath, Value: s}, nil
	}
	if _, err := cascadia.Compile(s); err != nil {
		return Locator{}, fmt.Errorf("locator: invalid css %q: %w", s, err)
	}
	return Locator{Kind: CSS, Value: s}, nil
}

// MustParse is Parse for locators known at compile time.
func MustParse(s string) Locator {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// XPathExpr renders the locator as an XPath expression. CSS locators have
// no XPath form and return false.
func (l Locator) XPathExpr() (string, bool) {
	switch l.Kind {
	case XPath:
		return l.Value, true
	case LinkText:
		return fmt.Sprintf("//a[normalize-space(.)=%s]", xpathLiteral(l.Value)), true
	default:
		return "", false
	}
}

func (l Locator) String() string {
	switch l.Kind {
	case XPath:
		return xpathPrefix + l.Value
	case LinkText:
		return linkPrefix + l.Value
	default:
		return l.Value
	}
}

// xpathLiteral quotes s for use inside an XPath 1.0 expression, which has
// no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	return `concat("` + strings.Join(parts, `", '"', "`) + `")`
}
