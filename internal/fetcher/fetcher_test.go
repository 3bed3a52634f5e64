package fetcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Engine.RetryDelay = time.Millisecond
	cfg.Engine.RequestTimeout = 5 * time.Second
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config) Fetcher {
	t.Helper()
	f, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func mustRequest(t *testing.T, rawURL string) *types.Request {
	t.Helper()
	req, err := types.NewRequest(rawURL)
	if err != nil {
		t.Fatalf("NewRequest(%q): %v", rawURL, err)
	}
	return req
}

func TestHTTPFetcherSendsHeaders(t *testing.T) {
	var gotUA, gotXHR string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotXHR = r.Header.Get("X-Requested-With")
		w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Engine.UserAgents = []string{"agent-a"}
	f := newTestFetcher(t, cfg)

	req := mustRequest(t, srv.URL+"/ships/cruise.json?id=1")
	req.Headers.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(resp.Body) != `{"result":"ok"}` {
		t.Errorf("body = %q", resp.Body)
	}
	if gotUA != "agent-a" {
		t.Errorf("User-Agent = %q, want agent-a", gotUA)
	}
	if gotXHR != "XMLHttpRequest" {
		t.Errorf("X-Requested-With = %q", gotXHR)
	}
}

func TestHTTPFetcherBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write([]byte("<html><body>compressed</body></html>"))
	bw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig())
	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(resp.Body) != "<html><body>compressed</body></html>" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestRateLimitIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(status)
		}))

		f := newTestFetcher(t, testConfig())
		_, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
		srv.Close()

		if !errors.Is(err, types.ErrRateLimited) {
			t.Fatalf("status %d: expected ErrRateLimited, got %v", status, err)
		}
		var fe *types.FetchError
		if !errors.As(err, &fe) || fe.RetryAfter != 30*time.Second {
			t.Errorf("status %d: expected RetryAfter 30s, got %+v", status, fe)
		}
		if hits.Load() != 1 {
			t.Errorf("status %d: expected exactly 1 request, got %d", status, hits.Load())
		}
	}
}

func TestServerErrorIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Engine.MaxRetries = 2
	f := newTestFetcher(t, cfg)

	resp, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(resp.Body) != "finally" {
		t.Errorf("body = %q", resp.Body)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Engine.MaxRetries = 1
	f := newTestFetcher(t, cfg)

	_, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 FetchError, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t, testConfig())
	_, err := f.Fetch(context.Background(), mustRequest(t, srv.URL))
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if errors.Is(err, types.ErrRateLimited) {
		t.Error("404 must not be reported as rate limiting")
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request, got %d", hits.Load())
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Engine.MaxRetries = 5
	cfg.Engine.RetryDelay = time.Hour
	f := newTestFetcher(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, mustRequest(t, srv.URL))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("retry wait ignored context cancellation")
	}
}

func TestRobotsGuard(t *testing.T) {
	var itineraryHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nDisallow: /private/\nAllow: /private/open\nCrawl-delay: 2\n"))
		default:
			itineraryHits.Add(1)
			w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Engine.RespectRobotsTxt = true
	f := newTestFetcher(t, cfg)

	if _, err := f.Fetch(context.Background(), mustRequest(t, srv.URL+"/ships?page=1")); err != nil {
		t.Fatalf("allowed path: %v", err)
	}
	if _, err := f.Fetch(context.Background(), mustRequest(t, srv.URL+"/private/open")); err != nil {
		t.Fatalf("explicitly allowed path: %v", err)
	}
	_, err := f.Fetch(context.Background(), mustRequest(t, srv.URL+"/private/x"))
	if !errors.Is(err, types.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if itineraryHits.Load() != 2 {
		t.Errorf("expected 2 non-robots requests, got %d", itineraryHits.Load())
	}

	guard, ok := f.(*RobotsGuard)
	if !ok {
		t.Fatalf("expected *RobotsGuard, got %T", f)
	}
	u, _ := url.Parse(srv.URL)
	if d := guard.CrawlDelay(u.Host); d != 2*time.Second {
		t.Errorf("crawl delay = %v, want 2s", d)
	}
}

func TestMatchRobotsPattern(t *testing.T) {
	tests := []struct {
		pattern, path string
		want          bool
	}{
		{"/ships", "/ships?page=2", true},
		{"/ships$", "/ships", true},
		{"/ships$", "/ships/1", false},
		{"/*.json", "/ships/cruise.json", true},
		{"/*.json$", "/ships/cruise.json?id=1", false},
		{"", "/anything", false},
		{"/private", "/public", false},
	}
	for _, tt := range tests {
		if got := matchRobotsPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchRobotsPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("12"); got != 12*time.Second {
		t.Errorf("seconds: got %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("empty: got %v", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("garbage: got %v", got)
	}
}

func TestUnknownFetcherType(t *testing.T) {
	cfg := testConfig()
	cfg.Fetcher.Type = "carrier-pigeon"
	if _, err := New(cfg, testLogger); err == nil {
		t.Error("expected error for unknown fetcher type")
	}
}
