package stream

import (
	"fmt"
	"strings"
)

// State of a stream. Transitions:
//
//	Idle    --play-->   Playing
//	Playing --pause-->  Paused
//	Paused  --resume--> Playing (play does the same)
//	Stopped --play-->   Playing, from the first sample
//	Idle, Playing, Paused --stop--> Stopped
//	Playing --all data through the peripheral--> Finished
type State int

const (
	Idle State = iota
	Playing
	Paused
	Stopped
	Finished
)

var stateNames = [...]string{
	Idle:     "idle",
	Playing:  "playing",
	Paused:   "paused",
	Stopped:  "stopped",
	Finished: "finished",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stateNames) {
		return nil, fmt.Errorf("unknown state %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if strings.EqualFold(name, string(text)) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
