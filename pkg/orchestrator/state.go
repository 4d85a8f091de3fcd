package orchestrator

import "fmt"

// State is the observable run state: exactly one of Idle, InProgress,
// Completed or Failed.
type State interface {
	isState()
	String() string
}

type Idle struct{}

type InProgress struct {
	StartedAt int64
	Forced    bool
}

type Completed struct {
	At int64
}

type Failed struct {
	Reason  string
	Offline bool
	At      int64
}

func (Idle) isState()       {}
func (InProgress) isState() {}
func (Completed) isState()  {}
func (Failed) isState()     {}

func (Idle) String() string        { return "idle" }
func (InProgress) String() string  { return "in_progress" }
func (s Completed) String() string { return fmt.Sprintf("completed at %d", s.At) }
func (s Failed) String() string    { return "failed: " + s.Reason }
