package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// OutcomeKind classifies a fetch attempt (spec §4.6).
type OutcomeKind string

const (
	OutcomeOK          OutcomeKind = "ok"
	OutcomeSkipNonHTML OutcomeKind = "skip_non_html"
	OutcomeThrottled   OutcomeKind = "throttled"
	OutcomeServerError OutcomeKind = "server_error"
	OutcomeClientError OutcomeKind = "client_error"
	OutcomeNoResponse  OutcomeKind = "no_response"
)

// upperBound is the absolute ceiling on a single fetch, regardless of
// the configured request timeout (spec §4.6).
const upperBound = 300 * time.Second

// cookieConsentSelectors is the fixed list of common consent-banner
// accept buttons tried, in order, each bounded to its own short
// timeout so a missing banner never stalls the fetch.
var cookieConsentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button#didomi-notice-agree-button",
	".cookie-consent-accept",
	"#accept-cookies",
	`button[aria-label="Accept all"]`,
	`button[aria-label="Accept All"]`,
	"#cookie-accept",
}

// PageOutcome is the result of a single fetch attempt.
type PageOutcome struct {
	Kind        OutcomeKind
	HTML        string
	ContentType string
	StatusCode  int
}

// Renderer fetches and renders a page using a pooled headless tab.
type Renderer struct {
	pool               *Pool
	logger             arbor.ILogger
	requestTimeout     time.Duration
	javaScriptWaitTime time.Duration
}

// NewRenderer builds a Renderer over pool. requestTimeout is clamped
// to the 300s absolute upper bound.
func NewRenderer(pool *Pool, requestTimeout, javaScriptWaitTime time.Duration, logger arbor.ILogger) *Renderer {
	if requestTimeout <= 0 || requestTimeout > upperBound {
		requestTimeout = upperBound
	}
	return &Renderer{
		pool:               pool,
		logger:             logger,
		requestTimeout:     requestTimeout,
		javaScriptWaitTime: javaScriptWaitTime,
	}
}

// Fetch navigates to rawURL, waits for JavaScript to settle, dismisses
// any cookie consent banner it recognizes, and returns the classified
// outcome.
func (r *Renderer) Fetch(ctx context.Context, rawURL string) (*PageOutcome, error) {
	browserCtx, release, err := r.pool.Tab()
	if err != nil {
		return nil, err
	}
	defer release()

	tabCtx, cancel := context.WithTimeout(browserCtx, r.requestTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		return &PageOutcome{Kind: OutcomeNoResponse}, nil
	}

	var statusCode int64
	var contentType string
	navErr := chromedp.Run(tabCtx,
		chromedp.Navigate(rawURL),
		chromedp.Evaluate(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`, nil),
	)
	if navErr != nil {
		return r.classifyNavigationFailure(navErr), nil
	}

	r.dismissCookieConsent(tabCtx)

	if r.javaScriptWaitTime > 0 {
		_ = chromedp.Run(tabCtx, chromedp.Sleep(r.javaScriptWaitTime))
	}

	var html string
	err = chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(`window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`, &statusCode),
		chromedp.Evaluate(`document.contentType || 'text/html'`, &contentType),
	)
	if err != nil {
		return &PageOutcome{Kind: OutcomeNoResponse}, nil
	}

	return classify(int(statusCode), contentType, html), nil
}

// dismissCookieConsent tries each known consent selector with its own
// short timeout; a banner that never appears must never stall the
// fetch.
func (r *Renderer) dismissCookieConsent(tabCtx context.Context) {
	for _, sel := range cookieConsentSelectors {
		clickCtx, cancel := context.WithTimeout(tabCtx, 3*time.Second)
		err := chromedp.Run(clickCtx, chromedp.Click(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			if r.logger != nil {
				r.logger.Debug().Str("selector", sel).Msg("dismissed cookie consent banner")
			}
			return
		}
	}
}

// classifyNavigationFailure handles chromedp.Navigate errors (DNS
// failures, connection refused, deadline exceeded): none carry a usable
// status code, so all surface as no_response.
func (r *Renderer) classifyNavigationFailure(err error) *PageOutcome {
	if r.logger != nil {
		r.logger.Debug().Err(err).Msg("navigation failed before a response was received")
	}
	return &PageOutcome{Kind: OutcomeNoResponse}
}

// classify maps an HTTP-ish status/content-type pair to an outcome
// kind per spec §4.6.
func classify(status int, contentType, html string) *PageOutcome {
	outcome := &PageOutcome{StatusCode: status, ContentType: contentType, HTML: html}

	if status == 429 {
		outcome.Kind = OutcomeThrottled
		return outcome
	}
	if status >= 500 {
		outcome.Kind = OutcomeServerError
		return outcome
	}
	if status >= 400 {
		outcome.Kind = OutcomeClientError
		return outcome
	}
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "text/html") &&
		!strings.Contains(strings.ToLower(contentType), "xhtml") {
		outcome.Kind = OutcomeSkipNonHTML
		return outcome
	}

	outcome.Kind = OutcomeOK
	return outcome
}
