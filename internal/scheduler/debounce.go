package scheduler

import (
	"sync"
	"time"
)

// Debouncer runs an action on the loop once a burst of triggers has been
// quiet for the window.
type Debouncer struct {
	loop   *Loop
	name   string
	window time.Duration
	action func()

	mu       sync.Mutex
	timer    *time.Timer
	pending  bool
	triggers int
	stopped  bool
}

// NewDebouncer creates a debouncer whose action runs on l.
func (l *Loop) NewDebouncer(name string, window time.Duration, action func()) *Debouncer {
	return &Debouncer{
		loop:   l,
		name:   name,
		window: window,
		action: action,
	}
}

// Trigger (re)arms the timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = true
	d.triggers++
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.fire)
		return
	}
	d.timer.Reset(d.window)
}

// Pending reports whether a triggered action has not run yet.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs a pending action now and waits for it. Like Loop.Do it must not
// be called from the loop.
func (d *Debouncer) Flush() error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	return d.loop.Do(d.run)
}

// Stop cancels a pending action and ignores further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) fire() {
	d.loop.Post(d.run)
}

func (d *Debouncer) run() {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = false
	n := d.triggers
	d.triggers = 0
	d.mu.Unlock()

	d.loop.logger.Debug("debounced action", "name", d.name, "triggers", n)
	d.action()
}
