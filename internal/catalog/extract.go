package catalog

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pricespy/internal/model"
)

// Selectors for the catalog markup.
const (
	listingSelector      = "article.product_pod"
	anchorSelector       = "h3 a"
	priceSelector        = "p.price_color"
	ratingSelector       = "p.star-rating"
	availabilitySelector = "p.instock.availability"
)

// UnknownAvailability is used when a listing has no stock-status element.
const UnknownAvailability = "Unknown"

var ratingLabels = []struct {
	class string
	value int
}{
	{"One", 1},
	{"Two", 2},
	{"Three", 3},
	{"Four", 4},
	{"Five", 5},
}

// Extract parses a listing page and returns one RawRecord per product block
// that has both a title and a price. Other blocks are skipped.
func (s Site) Extract(r io.Reader) ([]model.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: parse html")
	}

	var records []model.RawRecord
	doc.Find(listingSelector).Each(func(_ int, block *goquery.Selection) {
		rec, ok := s.extractBlock(block)
		if ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

func (s Site) extractBlock(block *goquery.Selection) (model.RawRecord, bool) {
	anchor := block.Find(anchorSelector).First()

	rec := model.RawRecord{
		Title:        extractTitle(anchor),
		Price:        strings.TrimSpace(block.Find(priceSelector).First().Text()),
		Rating:       extractRating(block.Find(ratingSelector).First()),
		Availability: extractAvailability(block.Find(availabilitySelector).First()),
	}
	if href, ok := anchor.Attr("href"); ok {
		rec.URL = s.ResolveProductURL(href)
	}

	if rec.Title == "" || rec.Price == "" {
		return model.RawRecord{}, false
	}
	return rec, true
}

// extractTitle prefers the anchor's title attribute (the visible text is
// truncated on the listing pages).
func extractTitle(anchor *goquery.Selection) string {
	if anchor.Length() == 0 {
		return ""
	}
	if title, ok := anchor.Attr("title"); ok {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	return strings.TrimSpace(anchor.Text())
}

func extractRating(el *goquery.Selection) *int {
	if el.Length() == 0 {
		return nil
	}
	for _, l := range ratingLabels {
		if el.HasClass(l.class) {
			v := l.value
			return &v
		}
	}
	return nil
}

func extractAvailability(el *goquery.Selection) string {
	if el.Length() == 0 {
		return UnknownAvailability
	}
	return el.Text()
}
