package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusEmpty    RunStatus = "empty"
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusComplete, RunStatusEmpty, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Run is the persisted record of one pipeline execution.
type Run struct {
	ID        string     `json:"id" yaml:"id"`
	Pages     int        `json:"pages" yaml:"pages"`
	Format    string     `json:"format" yaml:"format"`
	Status    RunStatus  `json:"status" yaml:"status"`
	Result    *RunResult `json:"result,omitempty" yaml:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Stats      SummaryStats `json:"stats" yaml:"stats"`
	ResultFile string       `json:"result_file,omitempty" yaml:"result_file,omitempty"`
	Error      string       `json:"error,omitempty" yaml:"error,omitempty"`
}
