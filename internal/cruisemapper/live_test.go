package cruisemapper

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/fetcher"
	"github.com/IshaanNene/cruisecrawl/internal/parser"
)

// TestLiveShipList checks the selectors against the real site. It only runs
// with CRUISECRAWL_LIVE=1 since it needs network access.
func TestLiveShipList(t *testing.T) {
	if testing.Short() || os.Getenv("CRUISECRAWL_LIVE") != "1" {
		t.Skip("skipping live test; set CRUISECRAWL_LIVE=1 to run")
	}

	cfg := config.DefaultConfig()
	f, err := fetcher.New(cfg, testLogger)
	if err != nil {
		t.Fatalf("create fetcher: %v", err)
	}
	c := NewClient(f, parser.NewCruiseMapper(testLogger), cfg.Source.BaseURL, testLogger)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	page, err := c.ShipListPage(ctx, 1)
	if err != nil {
		t.Fatalf("ship list: %v", err)
	}
	t.Logf("total ships: %d, on page: %d", page.Total, len(page.Ships))
	if page.Total == 0 || len(page.Ships) == 0 {
		t.Fatal("ship list selectors matched nothing")
	}

	time.Sleep(cfg.Engine.PolitenessDelay)
	detail, err := c.ShipDetail(ctx, page.Ships[0])
	if err != nil {
		t.Fatalf("ship detail: %v", err)
	}
	t.Logf("%s: line %q, %d voyages, %d passengers", page.Ships[0].Name, detail.CruiseLine, len(detail.Voyages), detail.MaxPassengers)
	if len(detail.Voyages) == 0 {
		t.Skip("first ship lists no voyages")
	}

	time.Sleep(cfg.Engine.PolitenessDelay)
	stops, err := c.VoyageItinerary(ctx, detail.Voyages[0].ID)
	if err != nil {
		t.Fatalf("itinerary: %v", err)
	}
	t.Logf("voyage %s: %d stops", detail.Voyages[0].ID, len(stops))
	if len(stops) == 0 {
		t.Error("itinerary selectors matched nothing")
	}
}
