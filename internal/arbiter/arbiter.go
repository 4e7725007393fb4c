// Package arbiter makes sure only one playback session is audible at a time.
//
// A session registers itself with Acquire before producing sound. Acquiring
// on behalf of a different session first stops the current holder, and that
// stop has finished by the time Acquire returns.
package arbiter

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Arbiter holds the single playback slot. The zero value is ready to use.
type Arbiter struct {
	// acquireMu serializes Acquire; the previous holder's stop callback
	// runs under it.
	acquireMu sync.Mutex

	mu     sync.Mutex
	holder string
	stop   func()
	held   bool

	log *log.Logger
}

// New returns an Arbiter that logs hand-overs to logger.
func New(logger *log.Logger) *Arbiter {
	return &Arbiter{log: logger}
}

// Acquire makes id the holder. If another session holds the slot its stop
// callback runs first, synchronously. Re-acquiring with the current id only
// replaces the callback.
func (a *Arbiter) Acquire(id string, stop func()) {
	a.acquireMu.Lock()
	defer a.acquireMu.Unlock()

	a.mu.Lock()
	if a.held && a.holder == id {
		a.stop = stop
		a.mu.Unlock()
		return
	}
	prev, prevStop, hadPrev := a.holder, a.stop, a.held
	a.holder, a.stop, a.held = "", nil, false
	a.mu.Unlock()

	if hadPrev && prevStop != nil {
		if a.log != nil {
			a.log.Debug("pre-empting playback", "holder", prev, "by", id)
		}
		prevStop()
	}

	a.mu.Lock()
	a.holder, a.stop, a.held = id, stop, true
	a.mu.Unlock()
}

// Release clears the slot if id holds it. A release by anyone else is
// ignored and reported as false.
func (a *Arbiter) Release(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.held || a.holder != id {
		return false
	}
	a.holder, a.stop, a.held = "", nil, false
	return true
}

// Holder returns the current holder, if any.
func (a *Arbiter) Holder() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder, a.held
}

// StopAll stops and clears the current holder.
func (a *Arbiter) StopAll() {
	a.acquireMu.Lock()
	defer a.acquireMu.Unlock()

	a.mu.Lock()
	stop, held := a.stop, a.held
	a.holder, a.stop, a.held = "", nil, false
	a.mu.Unlock()

	if held && stop != nil {
		stop()
	}
}
