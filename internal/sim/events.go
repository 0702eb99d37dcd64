package sim

// Trigger decides whether an event should fire given the current world
// state.
type Trigger interface {
	Evaluate(w *World) bool
}

// TriggerFunc adapts a plain function to the Trigger interface.
type TriggerFunc func(w *World) bool

func (f TriggerFunc) Evaluate(w *World) bool { return f(w) }

// Effect mutates the world when an event is handled.
type Effect interface {
	Apply(w *World)
}

// EffectFunc adapts a plain function to the Effect interface.
type EffectFunc func(w *World)

func (f EffectFunc) Apply(w *World) { f(w) }

// Event is a named happening. It fires when every trigger holds.
// Consequences are queued unconditionally once the event is handled;
// escalations are queued only when at least one of their own triggers
// holds at that moment.
type Event struct {
	Name         string
	Description  string
	Triggers     []Trigger
	Effects      []Effect
	Consequences []*Event
	Escalations  []*Event
}

// fired reports whether every trigger holds. An event with no triggers
// always fires.
func (ev *Event) fired(w *World) bool {
	for _, t := range ev.Triggers {
		if !t.Evaluate(w) {
			return false
		}
	}
	return true
}

// anyTrigger reports whether at least one trigger holds.
func (ev *Event) anyTrigger(w *World) bool {
	for _, t := range ev.Triggers {
		if t.Evaluate(w) {
			return true
		}
	}
	return false
}
