// Package extract reads listing records out of a loaded result page.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"autohawk/internal/config"
	"autohawk/internal/scraper/session"
	"autohawk/pkg/models"
	"autohawk/pkg/utils"
)

// Outcome is everything read from one result page
type Outcome struct {
	Records     []models.ListingRecord
	HasNextPage bool
	// NextURL is the absolute next-page link, empty when the site exposes none
	NextURL string
	// Skipped counts entries missing a required field
	Skipped int
}

// Extractor parses result pages of one site profile. It is stateless.
type Extractor struct {
	site config.SiteConfig
}

func New(site config.SiteConfig) *Extractor {
	return &Extractor{site: site}
}

// Extract returns the listings on page. Malformed entries are skipped and
// counted; the page fails only when its structure is unrecognisable.
func (e *Extractor) Extract(page *session.PageHandle) (*Outcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML()))
	if err != nil {
		return nil, utils.NewExtractionSchemaError(page.URL(), fmt.Sprintf("unparseable document: %v", err))
	}

	base, _ := url.Parse(page.URL())
	sel := e.site.Selectors
	out := &Outcome{}

	entries := doc.Find(sel.Listing)
	if entries.Length() == 0 {
		if sel.NoResults != "" && doc.Find(sel.NoResults).Length() > 0 {
			return out, nil
		}
		return nil, utils.NewExtractionSchemaError(page.URL(), fmt.Sprintf("no elements match %q", sel.Listing))
	}

	entries.Each(func(_ int, s *goquery.Selection) {
		record, ok := e.record(s, base)
		if !ok {
			out.Skipped++
			return
		}
		out.Records = append(out.Records, record)
	})

	out.HasNextPage, out.NextURL = e.nextPage(doc, base)
	return out, nil
}

func (e *Extractor) record(s *goquery.Selection, base *url.URL) (models.ListingRecord, bool) {
	sel := e.site.Selectors

	href, _ := s.Find(sel.Link).First().Attr("href")
	sourceURL := resolve(base, href)

	id := ""
	if sel.IDAttribute != "" {
		id = strings.TrimSpace(s.AttrOr(sel.IDAttribute, ""))
	}
	if id == "" {
		id = canonical(sourceURL)
	}
	if id == "" {
		return models.ListingRecord{}, false
	}

	title, ok := ParseTitle(text(s.Find(sel.Title)))
	if !ok {
		return models.ListingRecord{}, false
	}

	price, ok := ParsePrice(text(s.Find(sel.Price)))
	if !ok {
		return models.ListingRecord{}, false
	}

	record := models.ListingRecord{
		ID:        id,
		Make:      title.Make,
		Model:     title.Model,
		Year:      title.Year,
		Price:     price,
		Location:  text(s.Find(sel.Location)),
		Accidents: e.accidents(s),
		SourceURL: sourceURL,
	}
	if miles, ok := ParseMileage(text(s.Find(sel.Mileage))); ok {
		record.Mileage = &miles
	}
	return record, true
}

func (e *Extractor) accidents(s *goquery.Selection) models.AccidentHistory {
	history := models.AccidentUnknown
	noAccidents := strings.ToLower(e.site.NoAccidentText)
	reported := strings.ToLower(e.site.AccidentText)

	s.Find(e.site.Selectors.Badges).EachWithBreak(func(_ int, badge *goquery.Selection) bool {
		label := strings.ToLower(text(badge))
		switch {
		case noAccidents != "" && strings.Contains(label, noAccidents):
			history = models.AccidentNone
			return false
		case reported != "" && strings.Contains(label, reported):
			history = models.AccidentReported
			return false
		}
		return true
	})
	return history
}

func (e *Extractor) nextPage(doc *goquery.Document, base *url.URL) (bool, string) {
	if e.site.Selectors.NextPage == "" {
		return false, ""
	}
	link := doc.Find(e.site.Selectors.NextPage).First()
	if link.Length() == 0 || disabled(link) {
		return false, ""
	}
	href, _ := link.Attr("href")
	return true, resolve(base, href)
}

func disabled(s *goquery.Selection) bool {
	if strings.EqualFold(s.AttrOr("aria-disabled", ""), "true") {
		return true
	}
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	return s.HasClass("disabled")
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.First().Text()), " ")
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// canonical strips query and fragment so tracking parameters do not split identities
func canonical(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
