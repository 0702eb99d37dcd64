package lifecycle

import (
	"encoding/json"
	"fmt"
)

// State identifies the tier an object currently occupies. The zero value is
// StateInactive: an object the cache has never seen is simply inactive.
type State int

const (
	StateInactive State = iota
	StateBackground
	StateActive
	StateImmediate
)

var stateNames = map[State]string{
	StateInactive:   "inactive",
	StateBackground: "background",
	StateActive:     "active",
	StateImmediate:  "immediate",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// known reports whether s is one of the four recognized states.
func (s State) known() bool {
	_, ok := stateNames[s]
	return ok
}

// ParseState maps a tier name back to its State. Used when rehydrating
// persisted objects.
func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return StateInactive, false
}

// MarshalJSON encodes the state as its tier name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, ok := ParseState(name)
	if !ok {
		return fmt.Errorf("unknown state %q", name)
	}
	*s = parsed
	return nil
}

// transitions lists the legal target states for each current state. Every
// placement call consults this table before touching a container.
var transitions = map[State][]State{
	StateInactive:   {StateImmediate, StateBackground},
	StateBackground: {StateActive, StateImmediate, StateInactive},
	StateActive:     {StateImmediate, StateBackground, StateInactive},
	StateImmediate:  {StateActive, StateInactive},
}

func validateTransition(from, to State) error {
	for _, t := range transitions[from] {
		if t == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}
