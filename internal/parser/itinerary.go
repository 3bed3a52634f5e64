package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// itineraryPayload is the JSON envelope of the cruise.json endpoint.
type itineraryPayload struct {
	Result string `json:"result"`
}

// ParseItinerary decodes the itinerary endpoint's JSON envelope and pairs
// each date cell with the port cell in the same position, in source order.
func (p *CruiseMapper) ParseItinerary(resp *types.Response) ([]types.StopText, error) {
	var payload itineraryPayload
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &types.ParseError{URL: pageURL(resp), Err: fmt.Errorf("decode itinerary payload: %w", err)}
	}
	if strings.TrimSpace(payload.Result) == "" {
		return nil, &types.ParseError{URL: pageURL(resp), Selector: "result", Err: types.ErrEmptyResponse}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.Result))
	if err != nil {
		return nil, &types.ParseError{URL: pageURL(resp), Err: err}
	}

	dates := doc.Find(SelStopDate)
	ports := doc.Find(SelStopPort)
	if dates.Length() != ports.Length() {
		p.logger.Warn("itinerary cell count mismatch",
			"url", pageURL(resp),
			"dates", dates.Length(),
			"ports", ports.Length(),
		)
	}

	n := min(dates.Length(), ports.Length())
	stops := make([]types.StopText, 0, n)
	for i := 0; i < n; i++ {
		stops = append(stops, types.StopText{
			DateText: strings.TrimSpace(dates.Eq(i).Text()),
			PortText: ports.Eq(i).Text(),
		})
	}
	return stops, nil
}
