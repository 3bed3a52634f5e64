// Package parser extracts ship listings, ship details and voyage itinerary
// rows from cruisemapper.com pages.
package parser

import (
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Parser turns fetched site pages into collaborator records.
type Parser interface {
	ParseShipList(resp *types.Response) (*types.ShipListPage, error)
	ParseShipDetail(resp *types.Response) (*types.ShipDetail, error)
	ParseItinerary(resp *types.Response) ([]types.StopText, error)
}

// Selectors used against the site's markup.
const (
	SelTotal       = "span.total"
	SelShipItem    = "li.col-sm-6"
	SelShipName    = "h3"
	SelShipLink    = "a[href]"
	SelCruiseLine  = "a.shipCompanyLink"
	SelVoyageRow   = "tr[data-row]"
	SelVoyageDate  = "td.cruiseDatetime"
	SelStopDate    = "td.date"
	SelStopPort    = "td.text"
	shipPathMarker = "/ships/"
)

// CruiseMapper parses cruisemapper.com pages.
type CruiseMapper struct {
	logger *slog.Logger
}

// NewCruiseMapper creates a new cruisemapper.com parser.
func NewCruiseMapper(logger *slog.Logger) *CruiseMapper {
	return &CruiseMapper{
		logger: logger.With("component", "cruisemapper_parser"),
	}
}

// resolveURL makes href absolute against base.
func resolveURL(base, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil || ref.IsAbs() {
		return ref.String()
	}
	return b.ResolveReference(ref).String()
}

// leadingInt parses the first whitespace-separated token of s as an int,
// ignoring thousands separators. ok is false if there is no such token.
func leadingInt(s string) (int, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

func pageURL(resp *types.Response) string {
	if resp.FinalURL != "" {
		return resp.FinalURL
	}
	return resp.Request.URLString()
}
