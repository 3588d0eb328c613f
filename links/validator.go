package links

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 15 * time.Second

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Getter is the HTTP liveness collaborator. *http.Client satisfies it.
type Getter interface {
	Do(req *http.Request) (*http.Response, error)
}

// Verdict is the outcome of one liveness check. Valid is the only field
// assertions use; the rest is kept for the report.
type Verdict struct {
	URL        string
	StatusCode int
	Valid      bool
	Err        error
}

// ValidatorOptions tune request pacing and headers.
type ValidatorOptions struct {
	UserAgent string

	// RequestsPerSecond is the sustained rate per host. <= 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Validator checks that URLs answer with a success status.
// It is safe for concurrent use.
type Validator struct {
	client Getter
	opts   ValidatorOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewValidator creates a Validator. A nil client falls back to
// NewChromeClient with a 15s timeout.
func NewValidator(client Getter, opts ValidatorOptions) *Validator {
	if client == nil {
		client = NewChromeClient(defaultTimeout)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	return &Validator{
		client:   client,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// IsValid reports whether rawURL answers GET with a 2xx status. Transport
// failures and non-success statuses both yield false.
func (v *Validator) IsValid(ctx context.Context, rawURL string) bool {
	return v.Check(ctx, rawURL).Valid
}

// Check performs the liveness request and returns its verdict. It never
// returns an error; failures are recorded in the verdict.
func (v *Validator) Check(ctx context.Context, rawURL string) Verdict {
	verdict := Verdict{URL: rawURL}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		verdict.Err = fmt.Errorf("links: not an http(s) url: %q", rawURL)
		return verdict
	}

	if err := v.limiter(u.Host).Wait(ctx); err != nil {
		verdict.Err = fmt.Errorf("links: rate limiter: %w", err)
		return verdict
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		verdict.Err = fmt.Errorf("links: build request: %w", err)
		return verdict
	}
	req.Header.Set("User-Agent", v.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := v.client.Do(req)
	if err != nil {
		verdict.Err = fmt.Errorf("links: request failed: %w", err)
		slog.Debug("link check failed", "url", rawURL, "error", err)
		return verdict
	}
	defer resp.Body.Close()
	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	verdict.StatusCode = resp.StatusCode
	verdict.Valid = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !verdict.Valid {
		verdict.Err = fmt.Errorf("links: HTTP %d for %s", resp.StatusCode, rawURL)
	}
	slog.Debug("link checked", "url", rawURL, "status", resp.StatusCode)
	return verdict
}

func (v *Validator) limiter(host string) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()
	l, ok := v.limiters[host]
	if !ok {
		limit := rate.Inf
		if v.opts.RequestsPerSecond > 0 {
			limit = rate.Limit(v.opts.RequestsPerSecond)
		}
		l = rate.NewLimiter(limit, v.opts.Burst)
		v.limiters[host] = l
	}
	return l
}
