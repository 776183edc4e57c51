package application

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRenderDebounce collapses a burst of reactions into one edit.
const DefaultRenderDebounce = 100 * time.Millisecond

type pendingRender struct {
	timer      clockwork.Timer
	generation uint64
}

// Debouncer runs fn(eventID) once per quiet period per event. A new
// Schedule for the same event cancels the pending call; the generation
// check also discards a callback that already started waiting on the lock
// when it was replaced.
//
// inflight counts timers whose callback may still run. It drops when a
// timer is stopped in time or its callback returns.
type Debouncer struct {
	clock clockwork.Clock
	delay time.Duration
	fn    func(eventID uint)

	mu       sync.Mutex
	idle     *sync.Cond
	next     uint64
	pending  map[uint]*pendingRender
	inflight int
	stopped  bool
}

func NewDebouncer(c clockwork.Clock, delay time.Duration, fn func(eventID uint)) *Debouncer {
	if delay <= 0 {
		delay = DefaultRenderDebounce
	}
	d := &Debouncer{
		clock:   c,
		delay:   delay,
		fn:      fn,
		pending: make(map[uint]*pendingRender),
	}
	d.idle = sync.NewCond(&d.mu)
	return d
}

// Schedule (re)starts the quiet period for eventID. It does nothing once
// the debouncer is stopped.
func (d *Debouncer) Schedule(eventID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if p, ok := d.pending[eventID]; ok {
		d.stopLocked(p)
	}
	d.next++
	gen := d.next
	p := &pendingRender{generation: gen}
	d.pending[eventID] = p
	d.inflight++
	p.timer = d.clock.AfterFunc(d.delay, func() { d.fire(eventID, gen) })
}

func (d *Debouncer) fire(eventID uint, gen uint64) {
	defer d.done()

	d.mu.Lock()
	p, ok := d.pending[eventID]
	if !ok || p.generation != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, eventID)
	d.mu.Unlock()

	d.fn(eventID)
}

func (d *Debouncer) done() {
	d.mu.Lock()
	d.inflight--
	d.idle.Broadcast()
	d.mu.Unlock()
}

// stopLocked cancels p's timer. A callback that already started accounts
// for itself in fire.
func (d *Debouncer) stopLocked(p *pendingRender) {
	if p.timer.Stop() {
		d.inflight--
		d.idle.Broadcast()
	}
}

// Cancel drops a pending call for eventID, if any.
func (d *Debouncer) Cancel(eventID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pending[eventID]; ok {
		d.stopLocked(p)
		delete(d.pending, eventID)
	}
}

// Wait blocks until every scheduled call has run or been cancelled.
func (d *Debouncer) Wait() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.inflight > 0 {
		d.idle.Wait()
	}
}

// Stop drops every pending call, refuses new ones and waits for calls
// already running. Call it before closing the store renders read from.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for id, p := range d.pending {
		d.stopLocked(p)
		delete(d.pending, id)
	}
	d.mu.Unlock()
	d.Wait()
}

// Pending returns the number of events with a scheduled call.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
