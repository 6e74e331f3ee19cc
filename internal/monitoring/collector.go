package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricespy/internal/model"
	"github.com/sells-group/pricespy/internal/store"
)

// maxCollectRuns bounds how many runs one collection pass reads.
const maxCollectRuns = 10000

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Run counts within the lookback window.
	RunsTotal    int `json:"runs_total" yaml:"runs_total"`
	RunsComplete int `json:"runs_complete" yaml:"runs_complete"`
	RunsEmpty    int `json:"runs_empty" yaml:"runs_empty"`
	RunsFailed   int `json:"runs_failed" yaml:"runs_failed"`
	RunsActive   int `json:"runs_active" yaml:"runs_active"`

	// Rates are over finished runs only.
	FailRate  float64 `json:"fail_rate" yaml:"fail_rate"`
	EmptyRate float64 `json:"empty_rate" yaml:"empty_rate"`

	// Averages over completed runs.
	AvgProducts    float64 `json:"avg_products" yaml:"avg_products"`
	AvgPrice       float64 `json:"avg_price" yaml:"avg_price"`
	AvgDurationSec float64 `json:"avg_duration_secs" yaml:"avg_duration_secs"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours" yaml:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at" yaml:"collected_at"`
}

// Finished returns the number of runs in a terminal state.
func (s *MetricsSnapshot) Finished() int {
	return s.RunsComplete + s.RunsEmpty + s.RunsFailed
}

// RunLister is the slice of store.Store the collector reads from.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from run history.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	filter := store.RunFilter{Limit: maxCollectRuns}
	if lookbackHours > 0 {
		filter.CreatedAfter = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}
	runs, err := c.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var (
		totalProducts int
		totalPrice    float64
		totalDur      time.Duration
	)
	for _, r := range runs {
		if !r.Status.Terminal() {
			snap.RunsActive++
			continue
		}
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			totalDur += r.UpdatedAt.Sub(r.CreatedAt)
			if r.Result != nil {
				totalProducts += r.Result.Stats.Count
				totalPrice += r.Result.Stats.AvgPrice
			}
		case model.RunStatusEmpty:
			snap.RunsEmpty++
		case model.RunStatusFailed:
			snap.RunsFailed++
		}
	}

	if finished := snap.Finished(); finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
		snap.EmptyRate = float64(snap.RunsEmpty) / float64(finished)
	}
	if snap.RunsComplete > 0 {
		n := float64(snap.RunsComplete)
		snap.AvgProducts = float64(totalProducts) / n
		snap.AvgPrice = totalPrice / n
		snap.AvgDurationSec = totalDur.Seconds() / n
	}

	return snap, nil
}
