package actiontype

import (
	"sync"
	"time"
)

// Action is a dispatched lifecycle event.
type Action struct {
	Type string `json:"type"`
	Err  string `json:"error,omitempty"`
}

// Status is the loading/error/success state of one base name.
type Status struct {
	Loading   bool      `json:"loading"`
	Succeeded bool      `json:"succeeded"`
	Err       string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker folds dispatched actions into per-base status. A nil *Tracker
// ignores every call. Safe for concurrent use.
type Tracker struct {
	registry *Registry
	now      func() time.Time

	mu        sync.RWMutex
	statuses  map[string]Status
	listeners []Listener
}

// Listener observes every recognised action after it has been applied.
type Listener func(base string, phase Phase, a Action)

// NewTracker returns a tracker. When registry is non-nil only registered
// families are tracked.
func NewTracker(registry *Registry) *Tracker {
	return &Tracker{
		registry: registry,
		now:      time.Now,
		statuses: make(map[string]Status),
	}
}

// Dispatch applies a and reports whether it was recognised.
func (t *Tracker) Dispatch(a Action) bool {
	if t == nil {
		return false
	}
	var (
		base  string
		phase Phase
		ok    bool
	)
	if t.registry != nil {
		var fam Family
		fam, phase, ok = t.registry.Lookup(a.Type)
		base = fam.Base
	} else {
		base, phase, ok = Split(a.Type)
	}
	if !ok {
		return false
	}

	t.mu.Lock()
	now := t.now().UTC()
	switch phase {
	case PhaseRequest:
		t.statuses[base] = Status{Loading: true, UpdatedAt: now}
	case PhaseSuccess:
		t.statuses[base] = Status{Succeeded: true, UpdatedAt: now}
	case PhaseFailed:
		msg := a.Err
		if msg == "" {
			msg = "failed"
		}
		t.statuses[base] = Status{Err: msg, UpdatedAt: now}
	case PhaseClean:
		delete(t.statuses, base)
	}
	listeners := t.listeners
	t.mu.Unlock()

	for _, l := range listeners {
		l(base, phase, a)
	}
	return true
}

// Listen registers l for every later dispatch. Listeners run on the
// dispatching goroutine and must not block.
func (t *Tracker) Listen(l Listener) {
	if t == nil || l == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Start dispatches the request phase of fam.
func (t *Tracker) Start(fam Family) {
	t.Dispatch(Action{Type: fam.Request})
}

// Finish dispatches the success or failed phase of fam depending on err.
func (t *Tracker) Finish(fam Family, err error) {
	if err != nil {
		t.Dispatch(Action{Type: fam.Failed, Err: err.Error()})
		return
	}
	t.Dispatch(Action{Type: fam.Success})
}

// Status returns the current status of base; ok is false when nothing is tracked.
func (t *Tracker) Status(base string) (Status, bool) {
	if t == nil {
		return Status{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[base]
	return st, ok
}

// Snapshot copies every tracked status.
func (t *Tracker) Snapshot() map[string]Status {
	if t == nil {
		return map[string]Status{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Status, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = v
	}
	return out
}
