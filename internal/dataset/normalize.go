// Package dataset reduces raw catalog records into a deduplicated,
// normalized Dataset and computes its summary statistics. Everything here is
// pure: the same input always yields the same output.
package dataset

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/sells-group/pricespy/internal/model"
)

// Canonical availability values.
const (
	InStock    = "In stock"
	OutOfStock = "Out of stock"
	Unknown    = "Unknown"
)

// NormalizePrice reduces currency text to an amount. Everything except
// decimal digits and '.' is dropped, and digits from any script are read by
// their value, so "£51.77" and "£５１.７７" both give 51.77. Other numeric
// characters such as "½" or "²" are dropped like any other symbol. Empty or
// unparseable input yields model.Unparsed.
func NormalizePrice(text string) model.Price {
	if text == "" {
		return model.Unparsed
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '.':
			b.WriteByte('.')
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.Is(unicode.Nd, r):
			b.WriteByte(byte('0' + digitValue(r)))
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return model.Unparsed
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return model.Unparsed
	}
	return model.Price{Value: v, Parsed: true}
}

// digitValue returns the value of a decimal digit rune. Decimal digits are
// encoded in contiguous runs of whole 0-9 blocks, so the offset from the
// start of the run gives the value.
func digitValue(r rune) int {
	start := r
	for unicode.Is(unicode.Nd, start-1) {
		start--
	}
	return int(r-start) % 10
}

// NormalizeAvailability maps free stock text to a canonical value. Only
// empty input is Unknown; whitespace trims to "". The in-stock phrase is checked before the out-of-stock phrase; text matching
// neither is returned trimmed.
func NormalizeAvailability(text string) string {
	if text == "" {
		return Unknown
	}
	trimmed := strings.TrimSpace(text)

	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "in stock"):
		return InStock
	case strings.Contains(lower, "out of stock"):
		return OutOfStock
	default:
		return trimmed
	}
}

// Normalize converts one raw record.
func Normalize(r model.RawRecord) model.NormalizedRecord {
	out := model.NormalizedRecord{
		RawRecord:    r,
		PriceNumeric: NormalizePrice(r.Price),
	}
	out.Availability = NormalizeAvailability(r.Availability)
	if r.Rating != nil {
		v := *r.Rating
		out.Rating = &v
	}
	return out
}
