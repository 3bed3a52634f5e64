package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// RobotsGuard refuses requests disallowed by the target host's robots.txt.
// robots.txt is fetched once per host through the wrapped fetcher.
type RobotsGuard struct {
	next   Fetcher
	logger *slog.Logger
	agent  string

	mu    sync.Mutex
	cache map[string]*robotsRules
}

// robotsRules holds the rules of one host that apply to us.
type robotsRules struct {
	disallowed []string
	allowed    []string
	crawlDelay time.Duration
}

// NewRobotsGuard wraps next with robots.txt enforcement.
func NewRobotsGuard(next Fetcher, logger *slog.Logger) *RobotsGuard {
	return &RobotsGuard{
		next:   next,
		logger: logger.With("component", "robots"),
		agent:  "cruisecrawl",
		cache:  make(map[string]*robotsRules),
	}
}

// Fetch implements Fetcher.
func (g *RobotsGuard) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	allowed, err := g.Allowed(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrBlocked}
	}
	return g.next.Fetch(ctx, req)
}

// Allowed reports whether u may be fetched. A robots.txt that cannot be
// fetched allows everything; a rate-limited robots.txt fetch is an error.
func (g *RobotsGuard) Allowed(ctx context.Context, u *url.URL) (bool, error) {
	rules, err := g.rules(ctx, u)
	if err != nil {
		return false, err
	}
	if rules == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	for _, pattern := range rules.allowed {
		if matchRobotsPattern(pattern, path) {
			return true, nil
		}
	}
	for _, pattern := range rules.disallowed {
		if matchRobotsPattern(pattern, path) {
			return false, nil
		}
	}
	return true, nil
}

// CrawlDelay returns the Crawl-delay the host asked for, if known.
func (g *RobotsGuard) CrawlDelay(host string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r := g.cache[host]; r != nil {
		return r.crawlDelay
	}
	return 0
}

func (g *RobotsGuard) rules(ctx context.Context, u *url.URL) (*robotsRules, error) {
	g.mu.Lock()
	rules, ok := g.cache[u.Host]
	g.mu.Unlock()
	if ok {
		return rules, nil
	}

	req, err := types.NewRequest(u.Scheme + "://" + u.Host + "/robots.txt")
	if err != nil {
		return nil, err
	}
	req.Tag = types.TagRobots

	resp, err := g.next.Fetch(ctx, req)
	switch {
	case errors.Is(err, types.ErrRateLimited), errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	case err != nil:
		g.logger.Debug("robots.txt unavailable, allowing all", "host", u.Host, "error", err)
	default:
		rules = parseRobotsTxt(string(resp.Body), g.agent)
		g.logger.Info("robots.txt loaded",
			"host", u.Host,
			"disallow_rules", len(rules.disallowed),
			"crawl_delay", rules.crawlDelay,
		)
	}

	g.mu.Lock()
	g.cache[u.Host] = rules
	g.mu.Unlock()
	return rules, nil
}

// Close implements Fetcher.
func (g *RobotsGuard) Close() error { return g.next.Close() }

// Type implements Fetcher.
func (g *RobotsGuard) Type() string { return g.next.Type() }

// parseRobotsTxt keeps the groups addressed to "*" or to agent.
func parseRobotsTxt(content, agent string) *robotsRules {
	rules := &robotsRules{}
	inOurSection := false

	for _, line := range strings.Split(content, "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			ua := strings.ToLower(value)
			inOurSection = ua == "*" || strings.Contains(ua, agent)
		case "disallow":
			if inOurSection && value != "" {
				rules.disallowed = append(rules.disallowed, value)
			}
		case "allow":
			if inOurSection && value != "" {
				rules.allowed = append(rules.allowed, value)
			}
		case "crawl-delay":
			if inOurSection {
				var delay float64
				if _, err := fmt.Sscanf(value, "%f", &delay); err == nil {
					rules.crawlDelay = time.Duration(delay * float64(time.Second))
				}
			}
		}
	}
	return rules
}

// matchRobotsPattern checks a URL path against a robots.txt pattern with
// the * and $ wildcards.
func matchRobotsPattern(pattern, path string) bool {
	if pattern == "" {
		return false
	}
	mustEnd := strings.HasSuffix(pattern, "$")
	pattern = strings.TrimSuffix(pattern, "$")

	if !strings.Contains(pattern, "*") {
		if mustEnd {
			return path == pattern
		}
		return strings.HasPrefix(path, pattern)
	}

	parts := strings.Split(pattern, "*")
	pos := 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(path[pos:], part)
		if idx < 0 || (i == 0 && idx != 0) {
			return false
		}
		pos += idx + len(part)
	}
	if mustEnd {
		return pos == len(path)
	}
	return true
}
