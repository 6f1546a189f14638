package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_FiresInDeadlineOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(3*time.Second, func() { got = append(got, "c") })
	m.AfterFunc(time.Second, func() { got = append(got, "a") })
	m.AfterFunc(2*time.Second, func() { got = append(got, "b") })

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []time.Duration{time.Second}, m.Pending())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestManual_StopPreventsFiring(t *testing.T) {
	m := NewManual()
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	m.Advance(time.Minute)

	assert.False(t, fired)
}

func TestManual_ChainedTasksFireWithinAdvance(t *testing.T) {
	m := NewManual()
	var at []time.Duration
	m.AfterFunc(time.Second, func() {
		at = append(at, m.Now())
		m.AfterFunc(time.Second, func() { at = append(at, m.Now()) })
	})

	m.Advance(5 * time.Second)

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, at)
	assert.Equal(t, 5*time.Second, m.Now())
}

func TestReal_StopAfterExpiryStillCancels(t *testing.T) {
	queue := make(chan func(), 1)
	r := NewReal(func(f func()) { queue <- f })
	fired := false
	tm := r.AfterFunc(time.Millisecond, func() { fired = true })

	f := <-queue
	assert.True(t, tm.Stop(), "not yet run on the loop")
	f()

	assert.False(t, fired)
}

func TestReal_Fires(t *testing.T) {
	queue := make(chan func(), 1)
	r := NewReal(func(f func()) { queue <- f })
	fired := false
	tm := r.AfterFunc(time.Millisecond, func() { fired = true })

	(<-queue)()

	assert.True(t, fired)
	assert.False(t, tm.Stop())
}
