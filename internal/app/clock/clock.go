// Package clock schedules cancellable deferred tasks for loop-bound components.
package clock

import (
	"time"
)

type Timer interface {
	// Stop cancels the task. It reports false if the task already ran or was stopped.
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Real fires tasks through post, normally loop.Loop.Post.
// Stop must be called from the same thread of control post delivers to.
type Real struct {
	post func(func())
}

func NewReal(post func(func())) *Real {
	return &Real{post: post}
}

type realTimer struct {
	t       *time.Timer
	stopped bool
	fired   bool
}

func (r *Real) AfterFunc(d time.Duration, f func()) Timer {
	rt := &realTimer{}
	rt.t = time.AfterFunc(d, func() {
		r.post(func() {
			// The timer may have been stopped after it expired but before this ran.
			if rt.stopped {
				return
			}
			rt.fired = true
			f()
		})
	})
	return rt
}

func (t *realTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.t.Stop()
	return true
}
