package stream

import (
	"sync"
	"time"
)

// Debouncer runs fn once no Trigger has happened for the whole window.
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	fn       func()
	timer    *time.Timer
	deadline time.Time
	stopped  bool
}

func NewDebouncer(window time.Duration, fn func()) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

// Trigger restarts the window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.deadline = time.Now().Add(d.window)

	var timer *time.Timer
	timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		if d.timer != timer || d.stopped {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.fn()
	})
	d.timer = timer
}

// Remaining reports how long until the pending run, if one is pending.
func (d *Debouncer) Remaining() (time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return 0, false
	}

	return max(time.Until(d.deadline), 0), true
}

// Cancel drops the pending run without stopping the debouncer.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels the pending run for good.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
