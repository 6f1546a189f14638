// Package loop provides the single thread of control the chat client runs on.
// Transport callbacks, timer expirations and API calls are posted as closures
// and executed one at a time, so room logic never runs in parallel.
package loop

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("loop stopped")

type Loop struct {
	events chan func()
	done   chan struct{}
}

func New(buffer int) *Loop {
	return &Loop{
		events: make(chan func(), buffer),
		done:   make(chan struct{}),
	}
}

// Run executes posted closures until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	log.Info().Str("module", "loop").Msg("loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "loop").Msg("loop ctx done")
			return
		case f := <-l.events:
			f()
		}
	}
}

// Post queues f. It blocks while the queue is full and drops f once the loop has stopped.
func (l *Loop) Post(f func()) {
	select {
	case l.events <- f:
	case <-l.done:
	}
}

// Do runs f on the loop and waits for it to finish.
// Calling Do from inside the loop deadlocks.
func (l *Loop) Do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	select {
	case l.events <- func() { f(); close(finished) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrStopped
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }
