package parser

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// ParseShipList extracts the ships of one listing page and the site-wide
// ship count. Entries without a name or a ship link are dropped.
// Total is 0 when the count is missing; callers decide whether that matters.
func (p *CruiseMapper) ParseShipList(resp *types.Response) (*types.ShipListPage, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: pageURL(resp), Err: err}
	}

	page := &types.ShipListPage{}
	if total, ok := leadingInt(doc.Find(SelTotal).First().Text()); ok {
		page.Total = total
	} else {
		p.logger.Debug("ship total not found", "url", pageURL(resp))
	}

	base := pageURL(resp)
	doc.Find(SelShipItem).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find(SelShipName).First().Text())
		href, _ := s.Find(SelShipLink).First().Attr("href")
		if name == "" || !strings.Contains(href, shipPathMarker) {
			p.logger.Debug("skipping ship entry", "name", name, "href", href)
			return
		}
		page.Ships = append(page.Ships, types.ShipRef{
			Name: name,
			URL:  resolveURL(base, href),
		})
	})

	if len(page.Ships) == 0 && page.Total == 0 {
		return nil, &types.ParseError{
			URL:      base,
			Selector: SelShipItem,
			Err:      errors.New("no ships and no total on listing page"),
		}
	}
	return page, nil
}
