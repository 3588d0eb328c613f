package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/use-agent/listingcheck/links"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
)

// maxDocumentBytes caps how much of a response body is parsed.
const maxDocumentBytes = 10 << 20

// documentSession serves pages as static DOM snapshots. Scripts never run,
// so conditions are evaluated once: what is absent now stays absent.
type documentSession struct {
	client    *http.Client
	userAgent string

	url   *url.URL
	doc   *goquery.Document
	title string

	log *slog.Logger
}

func openDocument(opts Options, tc models.TestCase) Session {
	timeout := opts.Links.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := links.NewChromeClient(timeout)
	if jar, err := cookiejar.New(nil); err == nil {
		client.Jar = jar
	}
	ua := firstNonEmpty(tc.Capability.Str("userAgent"), opts.Links.UserAgent)
	if ua == "" {
		ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	}
	return &documentSession{
		client:    client,
		userAgent: ua,
		log:       slog.With("case", tc.Name, "engine", EngineHTTP),
	}
}

func (s *documentSession) Navigate(ctx context.Context, rawURL string) error {
	target, err := s.resolve(rawURL)
	if err != nil {
		return models.NewVerifyError(models.ErrCodeBrowser, "invalid url "+rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return models.NewVerifyError(models.ErrCodeBrowser, "build request", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return categorizeError(err, "navigation to "+target.String()+" failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return categorizeError(err, "read "+target.String())
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.NewVerifyError(models.ErrCodeBrowser, "parse "+target.String(), err)
	}

	s.url = resp.Request.URL
	s.doc = doc
	s.title = readTitle(bytes.NewReader(body))
	s.log.Debug("navigated", "url", s.url.String(), "status", resp.StatusCode)
	return nil
}

func (s *documentSession) Title(context.Context) (string, error) {
	return s.title, nil
}

func (s *documentSession) Find(ctx context.Context, loc locator.Locator) (Element, bool, error) {
	if s.doc == nil {
		return nil, false, nil
	}
	sel, err := selectIn(s.doc.Selection, loc)
	if err != nil {
		return nil, false, err
	}
	if sel.Length() == 0 {
		return nil, false, nil
	}
	return &docElement{s: s, sel: sel.First()}, true, nil
}

func (s *documentSession) FindAll(ctx context.Context, loc locator.Locator) ([]Element, error) {
	if s.doc == nil {
		return nil, nil
	}
	sel, err := selectIn(s.doc.Selection, loc)
	if err != nil {
		return nil, err
	}
	return s.wrap(sel), nil
}

func (s *documentSession) WaitFor(ctx context.Context, cond Condition, timeout time.Duration) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(err, "waiting for "+cond.String())
	}
	found, ok, err := s.Find(ctx, cond.Locator)
	if err != nil {
		return nil, err
	}
	if ok {
		el := found.(*docElement)
		switch cond.Kind {
		case CondClickable:
			ok = el.enabled()
		case CondTextContains:
			ok = strings.Contains(el.text(), cond.Text)
		}
		if ok {
			return el, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (static document)", ErrWaitTimeout, cond)
}

func (s *documentSession) Close() error {
	s.client.CloseIdleConnections()
	s.doc = nil
	return nil
}

func (s *documentSession) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if s.url != nil {
		u = s.url.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

func (s *documentSession) wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, one *goquery.Selection) {
		out = append(out, &docElement{s: s, sel: one})
	})
	return out
}

// selectIn evaluates loc below root. XPath has no static equivalent here.
func selectIn(root *goquery.Selection, loc locator.Locator) (*goquery.Selection, error) {
	switch loc.Kind {
	case locator.CSS:
		return root.Find(loc.Value), nil
	case locator.LinkText:
		return root.Find("a").FilterFunction(func(_ int, a *goquery.Selection) bool {
			return normalizeSpace(a.Text()) == loc.Value
		}), nil
	default:
		return nil, models.ConfigError("browser: %s locator %q needs the rod engine", loc.Kind, loc.Value)
	}
}

type docElement struct {
	s   *documentSession
	sel *goquery.Selection
}

// Click follows anchors. Fragment and script links, and every other
// element, have no effect without a script engine.
func (e *docElement) Click(ctx context.Context) error {
	if goquery.NodeName(e.sel) != "a" {
		e.s.log.Debug("click has no effect on static element", "tag", goquery.NodeName(e.sel))
		return nil
	}
	href, ok := e.sel.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return nil
	}
	return e.s.Navigate(ctx, href)
}

func (e *docElement) Type(_ context.Context, text string) error {
	cur, _ := e.sel.Attr("value")
	e.sel.SetAttr("value", cur+text)
	return nil
}

func (e *docElement) Press(_ context.Context, key Key) error {
	e.s.log.Debug("key press has no effect on static document", "key", key.String())
	return nil
}

func (e *docElement) Attribute(_ context.Context, name string) (string, bool, error) {
	switch name {
	case "innerHTML":
		if raw, ok := rawText(e.sel); ok {
			return raw, true, nil
		}
		h, err := e.sel.Html()
		if err != nil {
			return "", false, models.NewVerifyError(models.ErrCodeBrowser, "render innerHTML", err)
		}
		return h, true, nil
	case "outerHTML":
		h, err := goquery.OuterHtml(e.sel)
		if err != nil {
			return "", false, models.NewVerifyError(models.ErrCodeBrowser, "render outerHTML", err)
		}
		return h, true, nil
	case "textContent":
		return e.sel.Text(), true, nil
	case "innerText":
		return e.text(), true, nil
	}

	v, ok := e.sel.Attr(name)
	if !ok {
		return "", false, nil
	}
	if name == "href" || name == "src" {
		if u, err := e.s.resolve(v); err == nil {
			return u.String(), true, nil
		}
	}
	return v, true, nil
}

func (e *docElement) Text(context.Context) (string, error) {
	return e.text(), nil
}

func (e *docElement) FindAll(_ context.Context, loc locator.Locator) ([]Element, error) {
	sel, err := selectIn(e.sel, loc)
	if err != nil {
		return nil, err
	}
	return e.s.wrap(sel), nil
}

func (e *docElement) text() string {
	return normalizeSpace(e.sel.Text())
}

func (e *docElement) enabled() bool {
	_, disabled := e.sel.Attr("disabled")
	_, hidden := e.sel.Attr("hidden")
	return !disabled && !hidden
}

// rawText returns the unescaped content of a raw text element such as
// <script>. html.Render escapes text nodes, which would corrupt embedded
// JSON; browsers report these elements' innerHTML verbatim.
func rawText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	n := sel.Get(0)
	if n.Type != html.ElementNode {
		return "", false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Xmp, atom.Iframe, atom.Noembed, atom.Noframes, atom.Plaintext:
	default:
		return "", false
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.TextNode {
			return "", false
		}
		b.WriteString(c.Data)
	}
	return b.String(), true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// readTitle returns the text of the first <title> element.
func readTitle(r io.Reader) string {
	z := html.NewTokenizer(r)
	inTitle := false
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return normalizeSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.Title {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				b.Write(z.Text())
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inTitle && atom.Lookup(name) == atom.Title {
				return normalizeSpace(b.String())
			}
		}
	}
}
