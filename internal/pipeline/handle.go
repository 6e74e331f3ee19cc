package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/pricespy/internal/model"
)

const maxLogLines = 200

// FinishFunc runs on the worker after a successful run, typically to export
// the dataset. It returns the path of the produced artifact.
type FinishFunc func(ctx context.Context, runID string, res *Result) (string, error)

// Snapshot is a point-in-time copy of a run's state.
type Snapshot struct {
	RunID       string              `json:"run_id"`
	Status      model.RunStatus     `json:"status"`
	IsRunning   bool                `json:"is_running"`
	Progress    int                 `json:"progress"`
	CurrentPage int                 `json:"current_page"`
	TotalPages  int                 `json:"total_pages"`
	Message     string              `json:"message"`
	Logs        []string            `json:"logs"`
	ResultFile  string              `json:"result_file,omitempty"`
	Stats       *model.SummaryStats `json:"stats,omitempty"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}

// Handle owns one run. Only the run's worker writes to it; any number of
// readers may take snapshots, consume events or wait for the result.
type Handle struct {
	id     string
	pages  int
	events chan model.ProgressEvent
	done   chan struct{}

	mu     sync.RWMutex
	snap   Snapshot
	result *Result
	err    error
}

func newHandle(pages int) *Handle {
	id := uuid.New().String()
	return &Handle{
		id:     id,
		pages:  pages,
		events: make(chan model.ProgressEvent, pages),
		done:   make(chan struct{}),
		snap: Snapshot{
			RunID:      id,
			Status:     model.RunStatusQueued,
			TotalPages: pages,
			Logs:       []string{},
		},
	}
}

// Start launches p on its own goroutine and returns the run's handle.
func Start(ctx context.Context, p *Pipeline, pages int, finish FinishFunc) *Handle {
	h := newHandle(pages)
	go h.run(ctx, p, finish)
	return h
}

// ID returns the run identifier.
func (h *Handle) ID() string { return h.id }

// Events streams one event per page in order. The channel is buffered for
// every page of the run and is closed when the run ends, so an absent
// consumer never stalls the worker.
func (h *Handle) Events() <-chan model.ProgressEvent { return h.events }

// Done is closed once the run has reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Running reports whether the run has not yet finished.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the run finishes and returns its outcome.
func (h *Handle) Wait() (*Result, error) {
	<-h.done
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.result, h.err
}

// Snapshot returns a copy of the run's current state.
func (h *Handle) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.snap
	s.Logs = append([]string(nil), h.snap.Logs...)
	if h.snap.Stats != nil {
		stats := *h.snap.Stats
		s.Stats = &stats
	}
	return s
}

func (h *Handle) run(ctx context.Context, p *Pipeline, finish FinishFunc) {
	defer close(h.done)
	defer close(h.events)

	h.update(func(s *Snapshot) {
		s.Status = model.RunStatusRunning
		s.IsRunning = true
		s.StartedAt = time.Now().UTC()
		s.Message = "Starting scraper..."
		s.appendLog(s.Message)
	})

	res, err := p.Run(ctx, h.pages, h.publish)

	var file string
	if err == nil && finish != nil {
		h.update(func(s *Snapshot) {
			s.Message = "Exporting data..."
			s.appendLog(s.Message)
		})
		file, err = finish(ctx, h.id, res)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.result, h.err = res, err

	now := time.Now().UTC()
	s := &h.snap
	s.IsRunning = false
	s.FinishedAt = &now
	s.ResultFile = file
	if res != nil {
		stats := res.Stats
		s.Stats = &stats
	}

	switch {
	case err == nil:
		s.Status = model.RunStatusComplete
		s.Progress = 100
		s.Message = fmt.Sprintf("Completed! Scraped %d products", res.Dataset.Len())
	case errors.Is(err, ErrNoData):
		s.Status = model.RunStatusEmpty
		s.Message = "No products found. Please try again."
	default:
		s.Status = model.RunStatusFailed
		s.Error = err.Error()
		s.Message = "Run failed: " + err.Error()
	}
	s.appendLog(s.Message)

	zap.L().Info("pipeline: run finished",
		zap.String("run_id", h.id),
		zap.String("status", string(s.Status)),
		zap.String("result_file", file),
	)
}

// publish is the worker's progress sink. The events buffer holds one slot
// per page, so the send never blocks.
func (h *Handle) publish(ev model.ProgressEvent) {
	h.update(func(s *Snapshot) {
		s.CurrentPage = ev.Current
		s.TotalPages = ev.Total
		s.Progress = ev.Percent()
		s.Message = ev.Message
		s.appendLog(ev.Message)
	})
	h.events <- ev
}

func (h *Handle) update(fn func(s *Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.snap)
}

func (s *Snapshot) appendLog(line string) {
	entry := time.Now().Format("15:04:05") + " " + line
	s.Logs = append(s.Logs, entry)
	if len(s.Logs) > maxLogLines {
		s.Logs = s.Logs[len(s.Logs)-maxLogLines:]
	}
}
