package parser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Capacity cells live in the ship's particulars table, next to a label
// cell. XPath keeps the label match independent of the table's classes.
const (
	xpathPassengers = `//tr[td[1][contains(translate(normalize-space(.), 'PASENGR', 'pasengr'), 'passengers')]]/td[2]`
	xpathCrew       = `//tr[td[1][contains(translate(normalize-space(.), 'CREW', 'crew'), 'crew')]]/td[2]`
)

// ParseShipDetail extracts the cruise line, capacity and the voyages listed
// on a ship page. Missing or malformed capacity degrades to zero.
func (p *CruiseMapper) ParseShipDetail(resp *types.Response) (*types.ShipDetail, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: pageURL(resp), Err: err}
	}

	detail := &types.ShipDetail{
		CruiseLine: strings.TrimSpace(doc.Find(SelCruiseLine).First().Text()),
	}
	if detail.CruiseLine == "" {
		p.logger.Warn("cruise line not found", "url", pageURL(resp), "selector", SelCruiseLine)
	}

	doc.Find(SelVoyageRow).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-row")
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		year, ok := leadingInt(s.Find(SelVoyageDate).First().Text())
		if !ok {
			p.logger.Debug("voyage year not found", "voyage_id", id)
		}
		detail.Voyages = append(detail.Voyages, types.VoyageRef{ID: id, Year: year})
	})

	detail.MaxPassengers, detail.Crew = p.capacity(resp)
	return detail, nil
}

// capacity reads passenger and crew counts. Either degrades to zero.
func (p *CruiseMapper) capacity(resp *types.Response) (passengers, crew int) {
	root, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		p.logger.Debug("capacity unavailable", "url", pageURL(resp), "error", err)
		return 0, 0
	}
	return p.xpathInt(root, xpathPassengers, "passengers"), p.xpathInt(root, xpathCrew, "crew")
}

func (p *CruiseMapper) xpathInt(root *html.Node, expr, field string) int {
	node, err := htmlquery.Query(root, expr)
	if err != nil || node == nil {
		p.logger.Debug("capacity field missing", "field", field, "error", err)
		return 0
	}
	text := strings.TrimSpace(htmlquery.InnerText(node))
	n, ok := leadingInt(text)
	if !ok || n < 0 {
		p.logger.Debug("capacity field malformed", "field", field, "value", text)
		return 0
	}
	return n
}
