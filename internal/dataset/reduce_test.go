package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/pricespy/internal/model"
)

func rating(v int) *int { return &v }

func sampleRecords() []model.RawRecord {
	return []model.RawRecord{
		{Title: "A Light in the Attic", Price: "£51.77", Rating: rating(3), Availability: "In stock", URL: "https://books.toscrape.com/catalogue/a/index.html"},
		{Title: "Tipping the Velvet", Price: "£53.74", Rating: rating(1), Availability: "In stock", URL: "https://books.toscrape.com/catalogue/b/index.html"},
		{Title: "Duplicate Attic", Price: "£10.00", Rating: rating(5), Availability: "Out of stock", URL: "https://books.toscrape.com/catalogue/a/index.html"},
		{Title: "No URL", Price: "N/A", Availability: "", URL: ""},
		{Title: "No URL again", Price: "£20.00", Availability: "Pre-order", URL: ""},
	}
}

func TestDedupe_FirstOccurrenceWins(t *testing.T) {
	got := Dedupe(sampleRecords())
	require.Len(t, got, 4)
	assert.Equal(t, "A Light in the Attic", got[0].Title)
	assert.Equal(t, "Tipping the Velvet", got[1].Title)
	assert.Equal(t, "No URL", got[2].Title)
	assert.Equal(t, "No URL again", got[3].Title)
}

func TestDedupe_AbsentURLsNeverRemoved(t *testing.T) {
	in := []model.RawRecord{
		{Title: "x", Price: "1"},
		{Title: "x", Price: "1"},
		{Title: "x", Price: "1"},
	}
	assert.Len(t, Dedupe(in), 3)
}

func TestDedupe_AtMostOnePerURL(t *testing.T) {
	got := Dedupe(sampleRecords())
	seen := map[string]int{}
	for _, r := range got {
		if r.URL != "" {
			seen[r.URL]++
		}
	}
	for url, n := range seen {
		assert.Equal(t, 1, n, url)
	}
}

func TestReduce_EndToEnd(t *testing.T) {
	in := []model.RawRecord{
		{Title: "First", Price: "£10.00", URL: "https://x/1"},
		{Title: "Second", Price: "£12.00", URL: "https://x/1"},
		{Title: "Orphan", Price: "£8.00"},
	}
	ds, stats := Reduce(in)

	require.Len(t, ds, 2)
	assert.Equal(t, "First", ds[0].Title)
	assert.Equal(t, "Orphan", ds[1].Title)
	assert.Equal(t, 2, stats.Count)
	assert.InDelta(t, 8.0, stats.MinPrice, 1e-9)
	assert.InDelta(t, 9.0, stats.AvgPrice, 1e-9)
	assert.InDelta(t, 10.0, stats.MaxPrice, 1e-9)
	assert.Zero(t, stats.AvgRating)
	assert.Zero(t, stats.RatedCount)
}

func TestReduce_Stats(t *testing.T) {
	ds, stats := Reduce(sampleRecords())

	require.Len(t, ds, 4)
	assert.Equal(t, Unknown, ds[2].Availability)
	assert.False(t, ds[2].PriceNumeric.Parsed)
	assert.Equal(t, "Pre-order", ds[3].Availability)

	assert.Equal(t, 4, stats.Count)
	assert.InDelta(t, 0.0, stats.MinPrice, 1e-9, "unparsed price counts as 0")
	assert.InDelta(t, 53.74, stats.MaxPrice, 1e-9)
	assert.InDelta(t, (51.77+53.74+0+20)/4, stats.AvgPrice, 1e-9)
	assert.Equal(t, 2, stats.RatedCount)
	assert.InDelta(t, 2.0, stats.AvgRating, 1e-9, "absent ratings excluded")
	assert.Equal(t, 1, UnparsedPrices(ds))
}

func TestReduce_Empty(t *testing.T) {
	ds, stats := Reduce(nil)
	assert.Empty(t, ds)
	assert.Equal(t, model.SummaryStats{}, stats)

	ds, stats = Reduce([]model.RawRecord{})
	assert.Empty(t, ds)
	assert.Equal(t, 0, stats.Count)
	assert.Zero(t, stats.MinPrice)
	assert.Zero(t, stats.AvgPrice)
	assert.Zero(t, stats.MaxPrice)
	assert.Zero(t, stats.AvgRating)
}

func TestReduce_Idempotent(t *testing.T) {
	in := sampleRecords()
	ds1, s1 := Reduce(in)
	ds2, s2 := Reduce(in)
	assert.Equal(t, ds1, ds2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, sampleRecords(), in, "input not mutated")
}

func TestRounded(t *testing.T) {
	s := Rounded(model.SummaryStats{Count: 3, MinPrice: 1.005, AvgPrice: 35.83666, MaxPrice: 53.74, AvgRating: 2.6666})
	assert.InDelta(t, 35.84, s.AvgPrice, 1e-9)
	assert.InDelta(t, 2.67, s.AvgRating, 1e-9)
	assert.Equal(t, 3, s.Count)
}
