package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sells-group/pricespy/internal/config"
	"github.com/sells-group/pricespy/internal/model"
	"github.com/sells-group/pricespy/internal/store"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{
		CheckIntervalSecs:    1,
		LookbackWindowHours:  24,
		FailureRateThreshold: 0.10,
	}
	checker := NewChecker(NewCollector(&mockRuns{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{
		CheckIntervalSecs: 0,
	})
	assert.Equal(t, defaultCheckInterval, checker.interval)

	// A cancelled context returns without checking.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

// countingRuns counts ListRuns calls.
type countingRuns struct {
	calls atomic.Int32
}

func (c *countingRuns) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	c.calls.Add(1)
	return nil, nil
}

func TestChecker_RunChecksImmediately(t *testing.T) {
	runs := &countingRuns{}
	cfg := config.MonitoringConfig{CheckIntervalSecs: 3600}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, int32(1), runs.calls.Load())
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	now := time.Now()
	var runs []model.Run
	for i := 0; i < 6; i++ {
		runs = append(runs, model.Run{Status: model.RunStatusFailed, CreatedAt: now.Add(-time.Minute)})
	}

	cfg := config.MonitoringConfig{
		WebhookURL:           ts.URL,
		LookbackWindowHours:  1,
		FailureRateThreshold: 0.5,
	}
	checker := NewChecker(NewCollector(&mockRuns{runs: runs}), NewAlerter(cfg), cfg)

	sent := checker.check(context.Background(), zap.NewNop())
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
}
