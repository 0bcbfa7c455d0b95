package main

import (
	"time"
)

// roundTimer holds the single pending auto-advance for one game module.
// Scheduling always supersedes the previous callback: the generation
// counter is bumped on every schedule/stop, and a fired callback that
// finds a newer generation under the server lock does nothing. Callers
// must hold the server lock; fn runs with the server lock held and is
// expected to re-check the module phase itself before acting.
type roundTimer struct {
	timer *time.Timer
	gen   uint64
}

func (t *roundTimer) schedule(srv *Server, d time.Duration, fn func()) {
	if t.timer != nil {
		t.timer.Stop()
	}

	t.gen++
	gen := t.gen

	t.timer = time.AfterFunc(d, func() {
		srv.mu.Lock()
		defer srv.mu.Unlock()

		if gen != t.gen {
			return
		}
		t.timer = nil

		fn()
	})
}

func (t *roundTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}
