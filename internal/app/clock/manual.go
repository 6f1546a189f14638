package clock

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler for tests. Time only moves on Advance.
// It is not safe for concurrent use.
type Manual struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	m    *Manual
	at   time.Duration
	seq  int
	f    func()
	done bool
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.seq++
	t := &manualTimer{m: m, at: m.now + d, seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward by d, firing due tasks in deadline order.
// Tasks scheduled by a firing task run too if they fall due within d.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		next := m.nextDue(target)
		if next == nil {
			break
		}
		m.now = next.at
		next.done = true
		next.f()
	}
	m.now = target
	m.compact()
}

// Now is the elapsed manual time.
func (m *Manual) Now() time.Duration { return m.now }

// Pending returns the remaining delays of scheduled tasks, soonest first.
func (m *Manual) Pending() []time.Duration {
	var out []time.Duration
	for _, t := range m.timers {
		if !t.done {
			out = append(out, t.at-m.now)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Manual) nextDue(target time.Duration) *manualTimer {
	var next *manualTimer
	for _, t := range m.timers {
		if t.done || t.at > target {
			continue
		}
		if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	m.timers = live
}
