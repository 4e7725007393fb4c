package playback

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle means nothing is loaded or playing.
	StateIdle State = iota
	// StateLoading means the first chunk is being synthesized.
	StateLoading
	// StatePlaying means the session holds the audio device.
	StatePlaying
	// StatePaused means playback stopped mid-chunk and can resume.
	StatePaused
	// StateError means the chunk needed for playback could not be produced.
	// The session returns to StateIdle on its own.
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the session has chunks loaded.
func (s State) Active() bool {
	return s == StateLoading || s == StatePlaying || s == StatePaused
}

var transitions = map[State][]State{
	StateIdle:    {StateLoading},
	StateLoading: {StatePlaying, StateError, StateIdle},
	StatePlaying: {StatePaused, StateError, StateIdle},
	StatePaused:  {StatePlaying, StateIdle},
	StateError:   {StateIdle, StateLoading},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Snapshot is what a UI observes of a session.
type Snapshot struct {
	ID     string
	State  State
	Index  int
	Total  int
	Offset time.Duration

	// Chunk is the text of the chunk at Index, empty when nothing is loaded.
	Chunk string

	version uint64
}

// Progress renders the position as "current/total", counting from one.
// It is empty when nothing is loaded.
func (s Snapshot) Progress() string {
	if s.Total == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", s.Index+1, s.Total)
}
