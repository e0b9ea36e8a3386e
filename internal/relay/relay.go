// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relay hands status messages from background goroutines to the
// single console loop. Producers never block; the consumer drains the queue
// fully on every tick, in FIFO order.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/p7m-converter/pkg/types"
)

// Relay is an unbounded FIFO queue of status messages with one consumer.
// The zero value is ready to use.
type Relay struct {
	mu    sync.Mutex
	queue []types.StatusMessage

	// drainMu serializes consumers so a message is dispatched once.
	drainMu sync.Mutex
}

// New returns an empty relay.
func New() *Relay {
	return &Relay{}
}

// Enqueue appends msg. It never blocks and is safe from any goroutine.
func (r *Relay) Enqueue(msg types.StatusMessage) {
	r.mu.Lock()
	r.queue = append(r.queue, msg)
	r.mu.Unlock()
}

// Text enqueues a plain status line.
func (r *Relay) Text(text string) {
	r.Enqueue(types.TextMessage(text))
}

// Ready enqueues the ready sentinel.
func (r *Relay) Ready() {
	r.Enqueue(types.ReadyMessage())
}

// Len returns the number of pending messages.
func (r *Relay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// tryDequeue removes the oldest message without blocking.
func (r *Relay) tryDequeue() (types.StatusMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return types.StatusMessage{}, false
	}
	msg := r.queue[0]
	r.queue[0] = types.StatusMessage{}
	r.queue = r.queue[1:]
	if len(r.queue) == 0 {
		r.queue = nil
	}
	return msg, true
}

// Drain dispatches pending messages in enqueue order until the queue is
// empty and returns how many were dispatched. Messages enqueued by dispatch
// itself, or concurrently, are picked up in the same call. An empty relay is
// a no-op.
func (r *Relay) Drain(dispatch func(types.StatusMessage)) int {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	n := 0
	for {
		msg, ok := r.tryDequeue()
		if !ok {
			return n
		}
		dispatch(msg)
		n++
	}
}

// Poller calls a tick function at a fixed cadence on the calling goroutine.
type Poller struct {
	Interval time.Duration
}

// Run calls tick immediately and then once per Interval until tick returns
// true or ctx is done. It returns ctx.Err() when the context ended the loop.
func (p Poller) Run(ctx context.Context, tick func() (done bool)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = types.DefaultPollInterval
	}

	if tick() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if tick() {
				return nil
			}
		}
	}
}
