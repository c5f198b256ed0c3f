package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCycleStart    EventType = "cycle_start"
	EventCycleEnd      EventType = "cycle_end"
	EventModeEnter     EventType = "mode_enter"
	EventModeLeave     EventType = "mode_leave"
	EventTurnCommitted EventType = "turn_committed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ThreadID  string    `json:"thread_id"`
}

// CycleEvent marks the start or the end of one submit cycle.
type CycleEvent struct {
	EventBase
	// Produced is the number of assistant turns produced (end only).
	Produced int   `json:"produced"`
	Err      error `json:"-"`
}

// ModeEvent represents entry into or exit from a mode handler.
type ModeEvent struct {
	EventBase
	Mode     Mode          `json:"mode"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// TurnEvent is emitted for every turn made durable by a commit.
type TurnEvent struct {
	EventBase
	Turn Turn `json:"turn"`
}

// LifecycleHooks defines callbacks for engine observability.
// Any of them may be nil.
type LifecycleHooks struct {
	OnCycleStart    func(context.Context, *CycleEvent)
	OnCycleEnd      func(context.Context, *CycleEvent)
	OnModeEnter     func(context.Context, *ModeEvent)
	OnModeLeave     func(context.Context, *ModeEvent)
	OnTurnCommitted func(context.Context, *TurnEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnCycleStart:    chain(h.OnCycleStart, other.OnCycleStart),
		OnCycleEnd:      chain(h.OnCycleEnd, other.OnCycleEnd),
		OnModeEnter:     chain(h.OnModeEnter, other.OnModeEnter),
		OnModeLeave:     chain(h.OnModeLeave, other.OnModeLeave),
		OnTurnCommitted: chain(h.OnTurnCommitted, other.OnTurnCommitted),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
