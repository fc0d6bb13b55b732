package registration

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-event-registration/internal/domain"
)

type flightState int

const (
	flightInProgress flightState = iota + 1
	flightCompleted
)

type flight struct {
	state       flightState
	fingerprint string
	result      domain.SubmissionResult
	completedAt time.Time
	// prev is the completed flight an in-progress one replaced, restored if
	// the new submission fails.
	prev *flight
}

// flights tracks submissions per session key. A key with no entry is idle.
// The check and the transition to in-progress happen under one lock.
type flights struct {
	mu        sync.Mutex
	entries   map[string]*flight
	retain    time.Duration
	now       func() time.Time
	lastPrune time.Time
}

func newFlights(retain time.Duration, now func() time.Time) *flights {
	return &flights{entries: make(map[string]*flight), retain: retain, now: now}
}

// begin moves key to in-progress for the submission identified by fingerprint.
// A completed key replays its cached result only when fingerprint matches the
// submission that produced it; a different submission starts a new flight.
// An in-progress key is a conflict whatever the payload.
func (f *flights) begin(key, fingerprint string) (*domain.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked()

	e, ok := f.entries[key]
	switch {
	case ok && e.state == flightInProgress:
		return nil, fmt.Errorf("a submission for this session is already in progress: %w", domain.ErrConflict)
	case ok && e.state == flightCompleted && e.fingerprint == fingerprint:
		res := e.result
		return &res, nil
	}
	next := &flight{state: flightInProgress, fingerprint: fingerprint}
	if ok {
		next.prev = e
	}
	f.entries[key] = next
	return nil, nil
}

// finish ends the flight for key. A nil result puts the key back to what it
// was before begin: idle, or the earlier completed submission.
func (f *flights) finish(key string, result *domain.SubmissionResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if result == nil {
		if ok && e.prev != nil {
			f.entries[key] = e.prev
		} else {
			delete(f.entries, key)
		}
		return
	}
	fp := ""
	if ok {
		fp = e.fingerprint
	}
	f.entries[key] = &flight{state: flightCompleted, fingerprint: fp, result: *result, completedAt: f.now()}
}

func (f *flights) pruneLocked() {
	now := f.now()
	if f.retain <= 0 || now.Sub(f.lastPrune) < time.Minute {
		return
	}
	f.lastPrune = now
	for k, e := range f.entries {
		if e.state == flightCompleted && now.Sub(e.completedAt) > f.retain {
			delete(f.entries, k)
		}
	}
}
