// Package plan follows remote plan progress and decides when a plan run is
// requested.
package plan

import (
	"fmt"
	"reflect"

	"github.com/grovetools/mirror/pkg/models"
)

// Phase is the lifecycle state of a tracker.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseDone    Phase = "done"
)

// Event is a tracker transition trigger derived from an update message.
type Event string

const (
	EventProgress Event = "progress"
	EventFinished Event = "finished"
	EventReset    Event = "reset"
)

// transitionTable defines all valid tracker transitions.
// Key: current phase → event → new phase.
var transitionTable = map[Phase]map[Event]Phase{
	PhaseIdle: {
		EventProgress: PhaseRunning,
		EventFinished: PhaseDone,
	},
	PhaseRunning: {
		EventProgress: PhaseRunning,
		EventFinished: PhaseDone,
		EventReset:    PhaseIdle,
	},
	PhaseDone: {
		EventProgress: PhaseRunning,
		EventFinished: PhaseDone,
		EventReset:    PhaseIdle,
	},
}

// ApplyTransition returns the new phase for the given current phase and event.
// Returns an error if the transition is not valid.
func ApplyTransition(current Phase, event Event) (Phase, error) {
	events, ok := transitionTable[current]
	if !ok {
		return "", fmt.Errorf("no transitions defined for phase %q", current)
	}
	next, ok := events[event]
	if !ok {
		return "", fmt.Errorf("invalid transition: %q + %q", current, event)
	}
	return next, nil
}

// EventFor maps an update message to its transition trigger.
func EventFor(u models.TrackerUpdate) Event {
	if u.Done {
		return EventFinished
	}
	return EventProgress
}

// Tracker is the client-side record of one long-running remote operation.
// It is created once per session and only changed by update messages.
type Tracker struct {
	Topic   models.Topic
	Phase   Phase
	Done    bool
	Success *bool
	Promote string
	Start   int64
	End     int64
	Meta    map[string]any

	last    models.TrackerUpdate
	updates int
}

// NewTracker creates an idle tracker for topic.
func NewTracker(topic models.Topic) *Tracker {
	return &Tracker{Topic: topic, Phase: PhaseIdle}
}

// Update applies u. It reports false without changing anything when u
// repeats the last applied update verbatim, since the channel may redeliver.
func (t *Tracker) Update(u models.TrackerUpdate) (bool, error) {
	if t.updates > 0 && reflect.DeepEqual(t.last, u) {
		return false, nil
	}
	next, err := ApplyTransition(t.Phase, EventFor(u))
	if err != nil {
		return false, err
	}

	t.Phase = next
	t.Done = u.Done
	t.Promote = u.Promote
	t.Start = u.Start
	t.End = u.End
	t.Meta = u.Meta
	if u.Done {
		ok := u.Succeeded()
		t.Success = &ok
	} else {
		t.Success = nil
	}
	t.last = u
	t.updates++
	return true, nil
}

// Reset returns the tracker to Idle.
func (t *Tracker) Reset() error {
	next, err := ApplyTransition(t.Phase, EventReset)
	if err != nil {
		return err
	}
	*t = Tracker{Topic: t.Topic, Phase: next}
	return nil
}

// Running reports whether the tracked operation is in progress.
func (t *Tracker) Running() bool {
	return t.Phase == PhaseRunning
}

// Succeeded reports whether the tracker finished successfully.
func (t *Tracker) Succeeded() bool {
	return t.Phase == PhaseDone && t.Success != nil && *t.Success
}
