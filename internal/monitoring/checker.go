package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/pricespy/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates run health on a fixed interval and posts any alerts.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
}

// NewChecker builds a Checker from the monitoring section. A non-positive
// check interval falls back to five minutes.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
	}
}

// Run checks once right away and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().Named("monitoring").With(zap.Int("lookback_hours", c.lookback))
	log.Info("monitoring: checker started", zap.Duration("interval", c.interval))
	defer log.Info("monitoring: checker stopped")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		c.check(ctx, log)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// check runs one collect, evaluate and send pass and returns how many alerts
// reached the webhook.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("monitoring: collect run metrics", zap.Error(err))
		return 0
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		log.Debug("monitoring: runs healthy",
			zap.Int("finished", snap.Finished()),
			zap.Float64("fail_rate", snap.FailRate),
			zap.Float64("empty_rate", snap.EmptyRate),
		)
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Warn("monitoring: thresholds breached",
		zap.Int("alerts", len(alerts)),
		zap.Int("sent", sent),
	)
	return sent
}
