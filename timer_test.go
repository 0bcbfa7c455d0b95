package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundTimerFires(t *testing.T) {
	srv := newServer(testConfig())

	var tm roundTimer
	done := make(chan struct{})

	srv.mu.Lock()
	tm.schedule(srv, 10*time.Millisecond, func() {
		close(done)
	})
	srv.mu.Unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled callback never ran")
	}
}

func TestRoundTimerStop(t *testing.T) {
	srv := newServer(testConfig())

	var tm roundTimer
	fired := false

	srv.mu.Lock()
	tm.schedule(srv, 10*time.Millisecond, func() {
		fired = true
	})
	tm.stop()
	srv.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.False(t, fired)
}

// A callback that has already left AfterFunc but is still waiting on
// the server lock must become a no-op once a newer deadline replaces
// it.
func TestRoundTimerSupersession(t *testing.T) {
	srv := newServer(testConfig())

	var tm roundTimer
	var fired []string

	srv.mu.Lock()
	tm.schedule(srv, 10*time.Millisecond, func() {
		fired = append(fired, "first")
	})

	// Hold the lock past the first deadline, so its callback is parked
	// on mu, then supersede it.
	time.Sleep(50 * time.Millisecond)
	tm.schedule(srv, 10*time.Millisecond, func() {
		fired = append(fired, "second")
	})
	srv.mu.Unlock()

	time.Sleep(200 * time.Millisecond)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"second"}, fired)
}

func TestRoundTimerRescheduleBeforeFire(t *testing.T) {
	srv := newServer(testConfig())

	var tm roundTimer
	var fired []string

	srv.mu.Lock()
	tm.schedule(srv, time.Hour, func() {
		fired = append(fired, "first")
	})
	tm.schedule(srv, 10*time.Millisecond, func() {
		fired = append(fired, "second")
	})
	srv.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, []string{"second"}, fired)
}
