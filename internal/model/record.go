package model

// RawRecord is one listing as extracted from a single catalog page.
// Title and Price are always non-empty; the remaining fields are best-effort.
type RawRecord struct {
	Title        string `json:"title" yaml:"title"`
	Price        string `json:"price" yaml:"price"`
	Rating       *int   `json:"rating,omitempty" yaml:"rating,omitempty"`
	Availability string `json:"availability" yaml:"availability"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
}

// HasURL reports whether the record carries an identity URL.
func (r RawRecord) HasURL() bool {
	return r.URL != ""
}

// Price is the outcome of reducing raw price text to an amount.
// Parsed is false when the text could not be parsed and Value is 0.
type Price struct {
	Value  float64 `json:"value" yaml:"value"`
	Parsed bool    `json:"parsed" yaml:"parsed"`
}

// Unparsed is the degraded price returned when parsing fails.
var Unparsed = Price{}

// NormalizedRecord is a RawRecord with a numeric price and a canonical
// availability value.
type NormalizedRecord struct {
	RawRecord    `yaml:",inline"`
	PriceNumeric Price `json:"price_numeric" yaml:"price_numeric"`
}

// Dataset is the ordered, URL-deduplicated collection of records for one run.
type Dataset []NormalizedRecord

// Len returns the number of records.
func (d Dataset) Len() int { return len(d) }

// HasRatings reports whether at least one record carries a rating.
func (d Dataset) HasRatings() bool {
	for _, r := range d {
		if r.Rating != nil {
			return true
		}
	}
	return false
}

// HasURLs reports whether at least one record carries a URL.
func (d Dataset) HasURLs() bool {
	for _, r := range d {
		if r.HasURL() {
			return true
		}
	}
	return false
}

// SummaryStats is a read-only snapshot derived from a Dataset.
type SummaryStats struct {
	Count      int     `json:"total_products" yaml:"total_products"`
	MinPrice   float64 `json:"min_price" yaml:"min_price"`
	AvgPrice   float64 `json:"avg_price" yaml:"avg_price"`
	MaxPrice   float64 `json:"max_price" yaml:"max_price"`
	AvgRating  float64 `json:"avg_rating" yaml:"avg_rating"`
	RatedCount int     `json:"rated_count" yaml:"rated_count"`
}

// ProgressEvent reports that the driver is about to fetch a page.
type ProgressEvent struct {
	Current int    `json:"current_page"`
	Total   int    `json:"total_pages"`
	Message string `json:"message"`
}

// Percent returns the share of requested pages reached, 0..100.
func (e ProgressEvent) Percent() int {
	if e.Total <= 0 {
		return 0
	}
	return e.Current * 100 / e.Total
}
