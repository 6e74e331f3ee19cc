package pipeline

import (
	"context"
	"sync"
)

// Builder creates the Pipeline for a validated set of options.
type Builder func(opts Options) (*Pipeline, error)

// Coordinator admits at most one run at a time and remembers the latest one
// so front ends can poll it.
type Coordinator struct {
	build Builder

	mu      sync.Mutex
	current *Handle
}

// NewCoordinator returns a Coordinator. A nil build uses FromOptions.
func NewCoordinator(build Builder) *Coordinator {
	if build == nil {
		build = FromOptions
	}
	return &Coordinator{build: build}
}

// Start validates opts and launches a run, or returns ErrRunInProgress if the
// previous run has not finished.
func (c *Coordinator) Start(ctx context.Context, opts Options, finish FinishFunc) (*Handle, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.current.Running() {
		return nil, ErrRunInProgress
	}

	p, err := c.build(opts)
	if err != nil {
		return nil, err
	}

	h := Start(ctx, p, opts.PageCount, finish)
	c.current = h
	return h, nil
}

// Current returns the latest run, or nil if none was started.
func (c *Coordinator) Current() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Busy reports whether a run is in flight.
func (c *Coordinator) Busy() bool {
	h := c.Current()
	return h != nil && h.Running()
}
