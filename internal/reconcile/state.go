package reconcile

import (
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle position of the current run.
type State string

const (
	StateIdle             State = "idle"
	StateFetching         State = "fetching"
	StateAwaitingDecision State = "awaiting_decision"
	StatePersisting       State = "persisting"
	StateDone             State = "done"
	StateAborted          State = "aborted"
)

// Active reports whether a run holding this state is still in flight.
func (s State) Active() bool {
	return s == StateFetching || s == StateAwaitingDecision || s == StatePersisting
}

var transitions = map[State][]State{
	StateIdle:             {StateFetching},
	StateFetching:         {StateAwaitingDecision, StatePersisting, StateDone, StateAborted},
	StateAwaitingDecision: {StatePersisting, StateAborted},
	StatePersisting:       {StateDone, StateAborted},
	StateDone:             {StateFetching},
	StateAborted:          {StateFetching},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Status is a point-in-time view of the tracker.
type Status struct {
	State     State     `json:"state"`
	RunID     string    `json:"runId,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Tracker holds the run state of one engine. It only protects the engine
// against overlapping runs in the same process; separate processes writing
// to the same snapshot are not coordinated.
type Tracker struct {
	mu       sync.Mutex
	status   Status
	now      func() time.Time
	observer func(Status)
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{status: Status{State: StateIdle}, now: time.Now}
}

// Observe registers fn to receive every status change. fn runs on the
// goroutine that made the change, after the tracker lock is released, and
// must not block.
func (t *Tracker) Observe(fn func(Status)) {
	t.mu.Lock()
	t.observer = fn
	t.mu.Unlock()
}

// Begin moves the tracker into Fetching for a new run.
func (t *Tracker) Begin(kind, runID string) error {
	t.mu.Lock()
	if t.status.State.Active() {
		t.mu.Unlock()
		return ErrRunInProgress
	}
	now := t.now().UTC()
	t.status = Status{State: StateFetching, RunID: runID, Kind: kind, StartedAt: now, UpdatedAt: now}
	t.notifyLocked()
	return nil
}

// Move advances the current run.
func (t *Tracker) Move(to State) error {
	t.mu.Lock()
	if !CanTransition(t.status.State, to) {
		from := t.status.State
		t.mu.Unlock()
		return fmt.Errorf("illegal run state transition %s -> %s", from, to)
	}
	t.status.State = to
	t.status.UpdatedAt = t.now().UTC()
	t.notifyLocked()
	return nil
}

// notifyLocked releases t.mu and then hands the new status to the observer.
func (t *Tracker) notifyLocked() {
	status, fn := t.status, t.observer
	t.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}

// Status returns a copy of the current status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
