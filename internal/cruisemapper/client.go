// Package cruisemapper is the site client the harvester drives: it builds
// requests for cruisemapper.com pages, fetches them and hands the bodies to
// the parser.
package cruisemapper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/IshaanNene/cruisecrawl/internal/fetcher"
	"github.com/IshaanNene/cruisecrawl/internal/parser"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Client fetches and parses cruisemapper.com pages.
type Client struct {
	fetcher fetcher.Fetcher
	parser  parser.Parser
	baseURL string
	logger  *slog.Logger

	requests atomic.Int64
}

// NewClient creates a Client rooted at baseURL (e.g. https://www.cruisemapper.com).
func NewClient(f fetcher.Fetcher, p parser.Parser, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		fetcher: f,
		parser:  p,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "cruisemapper"),
	}
}

// ShipListPage fetches one page of the ship listing.
func (c *Client) ShipListPage(ctx context.Context, page int) (*types.ShipListPage, error) {
	resp, err := c.get(ctx, c.ShipListURL(page), types.TagShipList, nil)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseShipList(resp)
}

// ShipDetail fetches a ship's page.
func (c *Client) ShipDetail(ctx context.Context, ship types.ShipRef) (*types.ShipDetail, error) {
	resp, err := c.get(ctx, ship.URL, types.TagShipDetail, nil)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseShipDetail(resp)
}

// VoyageItinerary fetches a voyage's itinerary rows through the site's AJAX endpoint.
func (c *Client) VoyageItinerary(ctx context.Context, voyageID string) ([]types.StopText, error) {
	headers := map[string]string{
		"X-Requested-With": "XMLHttpRequest",
		"Accept":           "application/json, text/javascript, */*; q=0.01",
	}
	resp, err := c.get(ctx, c.ItineraryURL(voyageID), types.TagItinerary, headers)
	if err != nil {
		return nil, err
	}
	return c.parser.ParseItinerary(resp)
}

// ShipListURL returns the listing URL for page.
func (c *Client) ShipListURL(page int) string {
	return c.baseURL + "/ships?page=" + strconv.Itoa(page)
}

// ItineraryURL returns the itinerary endpoint for a voyage.
func (c *Client) ItineraryURL(voyageID string) string {
	return c.baseURL + "/ships/cruise.json?id=" + url.QueryEscape(voyageID)
}

// Requests returns the number of requests issued so far.
func (c *Client) Requests() int64 { return c.requests.Load() }

// Close releases the underlying fetcher.
func (c *Client) Close() error { return c.fetcher.Close() }

func (c *Client) get(ctx context.Context, rawURL, tag string, headers map[string]string) (*types.Response, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", tag, err)
	}
	req.Tag = tag
	for k, v := range headers {
		req.Headers.Set(k, v)
	}

	c.requests.Add(1)
	c.logger.Debug("requesting", "tag", tag, "url", rawURL)

	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
