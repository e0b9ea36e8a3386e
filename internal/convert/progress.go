// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"sync"
	"sync/atomic"
)

// FileFailure is a per-file error waiting to be shown to the user.
type FileFailure struct {
	Input   string
	Message string
}

// Progress is written by the goroutine running a Batch and read by the
// console loop. The counter only moves forward within one run.
type Progress struct {
	current atomic.Int64
	total   atomic.Int64
	done    atomic.Bool

	mu        sync.Mutex
	completed []string
	failures  []FileFailure
	status    string
}

// ProgressSnapshot is a consistent copy of a Progress.
type ProgressSnapshot struct {
	Current   int
	Total     int
	Completed []string
	Failures  []FileFailure
	Status    string
	Done      bool
}

// NewProgress returns an empty Progress.
func NewProgress() *Progress {
	return &Progress{}
}

// Snapshot copies the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ProgressSnapshot{
		Current:   int(p.current.Load()),
		Total:     int(p.total.Load()),
		Completed: append([]string(nil), p.completed...),
		Failures:  append([]FileFailure(nil), p.failures...),
		Status:    p.status,
		Done:      p.done.Load(),
	}
}

// Done reports whether the run has finished.
func (p *Progress) Done() bool {
	return p.done.Load()
}

func (p *Progress) start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current.Store(0)
	p.total.Store(int64(total))
	p.done.Store(false)
	p.completed = nil
	p.failures = nil
	p.status = "Converting files..."
}

func (p *Progress) advance(current int, output, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int64(current) > p.current.Load() {
		p.current.Store(int64(current))
	}
	p.completed = append(p.completed, output)
	p.status = status
}

func (p *Progress) fail(f FileFailure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, f)
}

func (p *Progress) finish(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.done.Store(true)
}
