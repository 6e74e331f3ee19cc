package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/pricespy/internal/dataset"
	"github.com/sells-group/pricespy/internal/model"
	"github.com/sells-group/pricespy/internal/pipeline"
	"github.com/sells-group/pricespy/internal/store"
)

// runRecorder writes run history. History is best effort: failures are
// logged and never change a run's outcome. A nil store disables recording.
type runRecorder struct {
	st store.Store
}

func (r runRecorder) start(ctx context.Context, runID string, pages int, format string) {
	if r.st == nil {
		return
	}
	if _, err := r.st.CreateRun(ctx, store.NewRun{ID: runID, Pages: pages, Format: format}); err != nil {
		zap.L().Warn("history: create run failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	if err := r.st.UpdateRunStatus(ctx, runID, model.RunStatusRunning); err != nil {
		zap.L().Warn("history: update status failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (r runRecorder) finish(ctx context.Context, runID string, res *pipeline.Result, file string, runErr error) {
	if r.st == nil {
		return
	}

	result := &model.RunResult{ResultFile: file}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if res != nil {
		result.Stats = dataset.Rounded(res.Stats)
		n, err := r.st.SaveProducts(ctx, runID, res.Dataset)
		if err != nil {
			zap.L().Warn("history: save products failed", zap.String("run_id", runID), zap.Error(err))
		} else {
			zap.L().Debug("history: saved products", zap.String("run_id", runID), zap.Int64("rows", n))
		}
	}

	if err := r.st.UpdateRunResult(ctx, runID, statusFor(runErr), result); err != nil {
		zap.L().Warn("history: update result failed", zap.String("run_id", runID), zap.Error(err))
	}
}
