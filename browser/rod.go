package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/listingcheck/config"
	"github.com/use-agent/listingcheck/locator"
	"github.com/use-agent/listingcheck/models"
)

// pollInterval is how often a wait re-evaluates its condition.
const pollInterval = 250 * time.Millisecond

// Capability keys interpreted by the rod engine. Anything else is logged
// and ignored.
var rodCapabilityKeys = map[string]struct{}{
	"headless":       {},
	"windowSize":     {},
	"userAgent":      {},
	"bin":            {},
	"proxy":          {},
	"stealth":        {},
	"controlURL":     {},
	"noSandbox":      {},
	"blockResources": {},
	"blockTrackers":  {},
}

type rodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // nil when attached to a remote browser
	page     *rod.Page
	router   *rod.HijackRouter

	navTimeout time.Duration
	log        *slog.Logger
}

func openRod(ctx context.Context, opts Options, tc models.TestCase) (Session, error) {
	cfg := opts.Browser
	caps := tc.Capability
	log := slog.With("case", tc.Name, "engine", EngineRod)

	for k := range caps {
		if _, ok := rodCapabilityKeys[k]; !ok {
			log.Debug("capability not used by rod engine", "key", k)
		}
	}

	s := &rodSession{navTimeout: cfg.NavigationTimeout, log: log}
	if s.navTimeout <= 0 {
		s.navTimeout = 30 * time.Second
	}

	controlURL := firstNonEmpty(caps.Str("controlURL"), opts.ControlURL, cfg.ControlURL)
	if controlURL != "" {
		resolved, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, models.NewVerifyError(models.ErrCodeConfiguration, "resolve control url "+controlURL, err)
		}
		controlURL = resolved
		log.Info("attaching to remote browser", "controlURL", controlURL)
	} else {
		l, err := newLauncher(cfg, caps)
		if err != nil {
			return nil, err
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, categorizeError(err, "failed to launch browser")
		}
		s.launcher = l
		controlURL = u
		log.Info("browser launched", "controlURL", controlURL)
	}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, categorizeError(err, "failed to connect to browser")
	}

	if err := s.openPage(cfg.BlockedResourceTypes, cfg.Stealth, caps); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newLauncher(cfg config.BrowserConfig, caps models.Capability) (*launcher.Launcher, error) {
	headless := cfg.Headless
	if v, ok := caps.Bool("headless"); ok {
		headless = v
	}
	noSandbox := cfg.NoSandbox
	if v, ok := caps.Bool("noSandbox"); ok {
		noSandbox = v
	}

	l := launcher.New().
		Headless(headless).
		NoSandbox(noSandbox)

	if bin := firstNonEmpty(caps.Str("bin"), cfg.BrowserBin); bin != "" {
		l = l.Bin(bin)
	}
	if proxy := firstNonEmpty(caps.Str("proxy"), cfg.Proxy); proxy != "" {
		l = l.Proxy(proxy)
	}
	if ws := caps.Str("windowSize"); ws != "" {
		w, h, err := parseWindowSize(ws)
		if err != nil {
			return nil, err
		}
		l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", w, h))
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	return l, nil
}

func (s *rodSession) openPage(blocked []string, stealthDefault bool, caps models.Capability) error {
	useStealth := stealthDefault
	if v, ok := caps.Bool("stealth"); ok {
		useStealth = v
	}

	var err error
	if useStealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return categorizeError(err, "failed to open page")
	}

	if ws := caps.Str("windowSize"); ws != "" {
		w, h, err := parseWindowSize(ws)
		if err != nil {
			return err
		}
		if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width: w, Height: h, DeviceScaleFactor: 1,
		}); err != nil {
			return categorizeError(err, "failed to set viewport")
		}
	}
	if ua := caps.Str("userAgent"); ua != "" {
		if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			return categorizeError(err, "failed to set user agent")
		}
	}

	block, _ := caps.Bool("blockResources")
	trackers, _ := caps.Bool("blockTrackers")
	var types []string
	if block {
		types = blocked
	}
	s.router = newResourceFilter(types, trackers).install(s.page)
	return nil
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to "+url+" failed")
	}
	if err := p.WaitLoad(); err != nil {
		return categorizeError(err, "waiting for "+url+" to load")
	}
	s.log.Debug("navigated", "url", url)
	return nil
}

func (s *rodSession) Title(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", categorizeError(err, "failed to read title")
	}
	return res.Value.Str(), nil
}

func (s *rodSession) Find(ctx context.Context, loc locator.Locator) (Element, bool, error) {
	p := s.page.Context(ctx)
	var (
		ok  bool
		el  *rod.Element
		err error
	)
	if x, isX := loc.XPathExpr(); isX {
		ok, el, err = p.HasX(x)
	} else {
		ok, el, err = p.Has(loc.Value)
	}
	if err != nil {
		return nil, false, categorizeError(err, "find "+loc.String())
	}
	if !ok {
		return nil, false, nil
	}
	return &rodElement{el: el, navTimeout: s.navTimeout}, true, nil
}

func (s *rodSession) FindAll(ctx context.Context, loc locator.Locator) ([]Element, error) {
	p := s.page.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	if x, isX := loc.XPathExpr(); isX {
		els, err = p.ElementsX(x)
	} else {
		els, err = p.Elements(loc.Value)
	}
	if err != nil {
		return nil, categorizeError(err, "find all "+loc.String())
	}
	return wrapRod(els, s.navTimeout), nil
}

func (s *rodSession) WaitFor(ctx context.Context, cond Condition, timeout time.Duration) (Element, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		el, ok, err := s.check(waitCtx, cond)
		if ok {
			return el, nil
		}
		if err != nil {
			// The DOM may be mid-navigation; keep polling.
			lastErr = err
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, categorizeError(ctx.Err(), "waiting for "+cond.String())
			}
			if lastErr != nil {
				s.log.Debug("wait timed out", "condition", cond.String(), "lastError", lastErr)
			}
			return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, cond, timeout)
		case <-ticker.C:
		}
	}
}

func (s *rodSession) check(ctx context.Context, cond Condition) (Element, bool, error) {
	found, ok, err := s.Find(ctx, cond.Locator)
	if err != nil || !ok {
		return nil, false, err
	}
	el := found.(*rodElement).el.Context(ctx)

	switch cond.Kind {
	case CondClickable:
		visible, err := el.Visible()
		if err != nil || !visible {
			return nil, false, err
		}
		disabled, err := el.Disabled()
		if err != nil || disabled {
			return nil, false, err
		}
	case CondTextContains:
		text, err := el.Text()
		if err != nil || !strings.Contains(text, cond.Text) {
			return nil, false, err
		}
	}
	return found, true, nil
}

func (s *rodSession) Close() error {
	if s.router != nil {
		_ = s.router.Stop()
	}
	var err error
	if s.page != nil {
		err = s.page.Close()
	}
	if s.launcher != nil {
		if cerr := s.browser.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.cleanupLauncher()
	}
	s.log.Debug("session closed")
	return err
}

func (s *rodSession) cleanupLauncher() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
}

type rodElement struct {
	el         *rod.Element
	navTimeout time.Duration
}

func wrapRod(els rod.Elements, navTimeout time.Duration) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el, navTimeout: navTimeout}
	}
	return out
}

// Click clicks the element. When the element is a link that leaves the
// page, Click also waits for the next document to load so later lookups do
// not see the old DOM.
func (e *rodElement) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	if !leavesPage(el) {
		return categorizeError(el.Click(proto.InputMouseButtonLeft, 1), "click")
	}

	navCtx, cancel := context.WithTimeout(ctx, e.navTimeout)
	defer cancel()
	wait := el.Page().Context(navCtx).WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return categorizeError(err, "click")
	}
	wait()
	if err := ctx.Err(); err != nil {
		return categorizeError(err, "click")
	}
	return nil
}

func leavesPage(el *rod.Element) bool {
	res, err := el.Eval(`() => {
		if (this.tagName !== "A") return false;
		const href = (this.getAttribute("href") || "").trim().toLowerCase();
		return href !== "" && !href.startsWith("#") && !href.startsWith("javascript:");
	}`)
	return err == nil && res.Value.Bool()
}

func (e *rodElement) Type(ctx context.Context, text string) error {
	return categorizeError(e.el.Context(ctx).Input(text), "type")
}

func (e *rodElement) Press(ctx context.Context, key Key) error {
	var k input.Key
	switch key {
	case KeyEnter:
		k = input.Enter
	case KeyEscape:
		k = input.Escape
	case KeyTab:
		k = input.Tab
	default:
		return models.ConfigError("browser: unsupported key %s", key)
	}
	return categorizeError(e.el.Context(ctx).Type(k), "press "+key.String())
}

// Attribute prefers the DOM property, which carries resolved URLs and
// innerHTML, and falls back to the raw attribute.
func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	el := e.el.Context(ctx)
	prop, err := el.Property(name)
	if err != nil {
		return "", false, categorizeError(err, "read property "+name)
	}
	if s, ok := prop.Val().(string); ok {
		return s, true, nil
	}
	attr, err := el.Attribute(name)
	if err != nil {
		return "", false, categorizeError(err, "read attribute "+name)
	}
	if attr == nil {
		return "", false, nil
	}
	return *attr, true, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	return text, categorizeError(err, "read text")
}

func (e *rodElement) FindAll(ctx context.Context, loc locator.Locator) ([]Element, error) {
	el := e.el.Context(ctx)
	var (
		els rod.Elements
		err error
	)
	if x, isX := loc.XPathExpr(); isX {
		els, err = el.ElementsX(x)
	} else {
		els, err = el.Elements(loc.Value)
	}
	if err != nil {
		return nil, categorizeError(err, "find all "+loc.String())
	}
	return wrapRod(els, e.navTimeout), nil
}

// parseWindowSize reads "WIDTHxHEIGHT".
func parseWindowSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if ok {
		wi, werr := strconv.Atoi(strings.TrimSpace(w))
		hi, herr := strconv.Atoi(strings.TrimSpace(h))
		if werr == nil && herr == nil && wi > 0 && hi > 0 {
			return wi, hi, nil
		}
	}
	return 0, 0, models.ConfigError("browser: windowSize %q is not WIDTHxHEIGHT", s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
