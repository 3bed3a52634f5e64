package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// BrowserFetcher implements Fetcher using a headless Chromium via Rod.
// The harvest is serial, so one page is created lazily and reused.
type BrowserFetcher struct {
	browser *rod.Browser
	cfg     *config.Config
	logger  *slog.Logger

	mu   sync.Mutex
	page *rod.Page
	ua   int
}

// NewBrowserFetcher launches a browser and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:    cfg,
		logger: logger.With("component", "browser_fetcher"),
	}

	launchURL, err := bf.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready", "stealth", cfg.Fetcher.Stealth)
	return bf, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (bf *BrowserFetcher) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")
	return l.Launch()
}

// Fetch navigates to the request URL and returns the rendered content.
// Itinerary requests return the body text, which is the raw JSON payload.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}
	page = page.Context(ctx)

	if err := bf.applyHeaders(page, req); err != nil {
		bf.logger.Warn("failed to set request headers", "error", err)
	}

	timeout := bf.cfg.Engine.RequestTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	var received proto.NetworkResponseReceived
	wait := page.Timeout(timeout).WaitEvent(&received)

	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: ctx.Err() == nil}
	}
	wait()

	statusCode := http.StatusOK
	if received.Response != nil && received.Response.Status > 0 {
		statusCode = received.Response.Status
	}
	if isRateLimitStatus(statusCode) {
		return nil, &types.FetchError{
			URL:         req.URLString(),
			StatusCode:  statusCode,
			Err:         fmt.Errorf("HTTP %d", statusCode),
			RateLimited: true,
		}
	}
	if statusCode >= 400 {
		return nil, &types.FetchError{
			URL:        req.URLString(),
			StatusCode: statusCode,
			Err:        fmt.Errorf("HTTP %d", statusCode),
			Retryable:  statusCode >= 500,
		}
	}

	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	content, err := bf.content(page, req)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err, Retryable: true}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, statusCode, []byte(content), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"tag", req.Tag,
		"size", len(content),
		"duration", duration,
	)
	return resp, nil
}

// content returns the page HTML, or for JSON endpoints the body text.
func (bf *BrowserFetcher) content(page *rod.Page, req *types.Request) (string, error) {
	if req.Tag != types.TagItinerary {
		return page.HTML()
	}
	body, err := page.Element("body")
	if err != nil {
		return "", err
	}
	return body.Text()
}

// applyHeaders sets the rotating User-Agent and any extra request headers.
func (bf *BrowserFetcher) applyHeaders(page *rod.Page, req *types.Request) error {
	if uas := bf.cfg.Engine.UserAgents; len(uas) > 0 {
		bf.ua = (bf.ua + 1) % len(uas)
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: uas[bf.ua]}); err != nil {
			return err
		}
	}

	headers := make([]string, 0, len(req.Headers)*2)
	for k, vals := range req.Headers {
		if k == "User-Agent" {
			continue
		}
		for _, v := range vals {
			headers = append(headers, k, v)
		}
	}
	if len(headers) == 0 {
		return nil
	}
	_, err := page.SetExtraHeaders(headers)
	return err
}

// getPage returns the shared page, creating it on first use.
func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	if bf.page != nil {
		return bf.page, nil
	}

	var (
		page *rod.Page
		err  error
	)
	if bf.cfg.Fetcher.Stealth {
		page, err = stealth.Page(bf.browser)
	} else {
		page, err = bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	bf.page = page
	return page, nil
}

// Close shuts down the browser and releases resources.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.page != nil {
		_ = bf.page.Close()
		bf.page = nil
	}
	if bf.browser != nil {
		return bf.browser.Close()
	}
	return nil
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}
