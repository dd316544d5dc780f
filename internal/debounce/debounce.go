// Package debounce coalesces rapid per-key updates into a single commit after
// a quiet period.
package debounce

import (
	"sync"
	"time"
)

// Debouncer holds one pending value per key. Each Push cancels the key's
// timer and starts a new one; when a timer fires, commit receives the latest
// value. Commits run on timer goroutines.
type Debouncer struct {
	delay  time.Duration
	commit func(key, value string)

	mu      sync.Mutex
	pending map[string]*entry
	seq     uint64 // last generation handed out, across all keys
	stopped bool
}

type entry struct {
	value string
	timer *time.Timer
	gen   uint64
}

// New returns a Debouncer that commits after delay of inactivity per key.
func New(delay time.Duration, commit func(key, value string)) *Debouncer {
	return &Debouncer{
		delay:   delay,
		commit:  commit,
		pending: make(map[string]*entry),
	}
}

// Push records value for key and restarts the key's quiet period.
func (d *Debouncer) Push(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	e, ok := d.pending[key]
	if !ok {
		e = &entry{}
		d.pending[key] = e
	} else {
		e.timer.Stop()
	}
	e.value = value
	d.seq++
	e.gen = d.seq
	gen := e.gen
	e.timer = time.AfterFunc(d.delay, func() { d.fire(key, gen) })
}

// fire commits key unless a later Push or Flush has superseded gen.
func (d *Debouncer) fire(key string, gen uint64) {
	d.mu.Lock()
	e, ok := d.pending[key]
	if !ok || e.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	value := e.value
	d.mu.Unlock()

	d.commit(key, value)
}

// Flush commits key's pending value now. It reports whether anything was
// pending.
func (d *Debouncer) Flush(key string) bool {
	d.mu.Lock()
	e, ok := d.pending[key]
	if !ok || d.stopped {
		d.mu.Unlock()
		return false
	}
	e.timer.Stop()
	delete(d.pending, key)
	value := e.value
	d.mu.Unlock()

	d.commit(key, value)
	return true
}

// Cancel drops key's pending value without committing it.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.pending[key]; ok {
		e.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending returns the uncommitted value for key.
func (d *Debouncer) Pending(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.pending[key]
	if !ok {
		return "", false
	}
	return e.value, true
}

// Stop cancels every pending commit. Later pushes are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for k, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, k)
	}
}
