package dataset

import (
	"math"

	"github.com/sells-group/pricespy/internal/model"
)

// Dedupe keeps the first record for each non-empty URL. Records without a
// URL are always kept. Order of first appearance is preserved.
func Dedupe(records []model.RawRecord) []model.RawRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.RawRecord, 0, len(records))
	for _, r := range records {
		if r.HasURL() {
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// Reduce deduplicates and normalizes records and computes statistics over
// the result.
func Reduce(records []model.RawRecord) (model.Dataset, model.SummaryStats) {
	kept := Dedupe(records)
	ds := make(model.Dataset, 0, len(kept))
	for _, r := range kept {
		ds = append(ds, Normalize(r))
	}
	return ds, ComputeStats(ds)
}

// ComputeStats derives count, price min/avg/max and the average rating.
// Every record contributes its numeric price (0 when unparsed); only rated
// records contribute to the rating average. An empty dataset yields zeros.
func ComputeStats(ds model.Dataset) model.SummaryStats {
	var s model.SummaryStats
	if len(ds) == 0 {
		return s
	}

	s.Count = len(ds)
	s.MinPrice = ds[0].PriceNumeric.Value
	s.MaxPrice = ds[0].PriceNumeric.Value

	var priceSum float64
	var ratingSum int
	for _, r := range ds {
		p := r.PriceNumeric.Value
		priceSum += p
		if p < s.MinPrice {
			s.MinPrice = p
		}
		if p > s.MaxPrice {
			s.MaxPrice = p
		}
		if r.Rating != nil {
			ratingSum += *r.Rating
			s.RatedCount++
		}
	}

	s.AvgPrice = priceSum / float64(s.Count)
	if s.RatedCount > 0 {
		s.AvgRating = float64(ratingSum) / float64(s.RatedCount)
	}
	return s
}

// UnparsedPrices counts records whose price text could not be parsed.
func UnparsedPrices(ds model.Dataset) int {
	n := 0
	for _, r := range ds {
		if !r.PriceNumeric.Parsed {
			n++
		}
	}
	return n
}

// Rounded returns s with every average and bound rounded to two decimals,
// for display.
func Rounded(s model.SummaryStats) model.SummaryStats {
	s.MinPrice = round2(s.MinPrice)
	s.AvgPrice = round2(s.AvgPrice)
	s.MaxPrice = round2(s.MaxPrice)
	s.AvgRating = round2(s.AvgRating)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
