package cruisemapper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/fetcher"
	"github.com/IshaanNene/cruisecrawl/internal/parser"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const listingHTML = `<html><body><span class="total">2 ships</span><ul>
<li class="col-sm-6"><a href="/ships/Test-Ship-1"></a><h3>Test Ship</h3></li>
</ul></body></html>`

const detailHTML = `<html><body><a class="shipCompanyLink">Test Line</a>
<table><tr><td>Passengers</td><td>2,000</td></tr><tr><td>Crew</td><td>800</td></tr></table>
<table><tr data-row="42"><td class="cruiseDatetime">2024 July 20</td></tr></table>
</body></html>`

const itineraryJSON = `{"result":"<table><tr><td class=\"date\">20 Jul<\/td><td class=\"text\">Arriving in Nassau<\/td><\/tr><\/table>"}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Engine.RetryDelay = time.Millisecond
	f, err := fetcher.New(cfg, testLogger)
	if err != nil {
		t.Fatalf("fetcher.New: %v", err)
	}
	c := NewClient(f, parser.NewCruiseMapper(testLogger), srv.URL+"/", testLogger)
	t.Cleanup(func() { c.Close() })
	return c
}

func siteHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ships", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
		w.Write([]byte(listingHTML))
	})
	mux.HandleFunc("/ships/Test-Ship-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailHTML))
	})
	mux.HandleFunc("/ships/cruise.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("id") != "42" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(itineraryJSON))
	})
	return mux
}

func TestClientWalk(t *testing.T) {
	c := newTestClient(t, siteHandler(t))
	ctx := context.Background()

	page, err := c.ShipListPage(ctx, 1)
	if err != nil {
		t.Fatalf("ShipListPage: %v", err)
	}
	if page.Total != 2 || len(page.Ships) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	detail, err := c.ShipDetail(ctx, page.Ships[0])
	if err != nil {
		t.Fatalf("ShipDetail: %v", err)
	}
	want := &types.ShipDetail{
		CruiseLine:    "Test Line",
		MaxPassengers: 2000,
		Crew:          800,
		Voyages:       []types.VoyageRef{{ID: "42", Year: 2024}},
	}
	if diff := cmp.Diff(want, detail); diff != "" {
		t.Errorf("detail mismatch (-want +got):\n%s", diff)
	}

	stops, err := c.VoyageItinerary(ctx, "42")
	if err != nil {
		t.Fatalf("VoyageItinerary: %v", err)
	}
	if diff := cmp.Diff([]types.StopText{{DateText: "20 Jul", PortText: "Arriving in Nassau"}}, stops); diff != "" {
		t.Errorf("itinerary mismatch (-want +got):\n%s", diff)
	}

	if c.Requests() != 3 {
		t.Errorf("expected 3 requests, got %d", c.Requests())
	}
}

func TestClientRateLimited(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.ShipListPage(context.Background(), 1)
	if !errors.Is(err, types.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if types.Classify(err) != types.OutcomeFatal {
		t.Errorf("expected fatal outcome, got %v", types.Classify(err))
	}
}

func TestURLs(t *testing.T) {
	c := NewClient(nil, nil, "https://www.cruisemapper.com/", testLogger)
	if got := c.ShipListURL(3); got != "https://www.cruisemapper.com/ships?page=3" {
		t.Errorf("ShipListURL = %q", got)
	}
	if got := c.ItineraryURL("1754421"); got != "https://www.cruisemapper.com/ships/cruise.json?id=1754421" {
		t.Errorf("ItineraryURL = %q", got)
	}
}
