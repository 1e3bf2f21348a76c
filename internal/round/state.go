package round

import "github.com/google/uuid"

// State is one of Waiting, Starting or *Playing.
type State interface {
	Name() string
	isState()
}

// Waiting has no active round. A zero countdown idles until someone is
// connected.
type Waiting struct {
	Countdown int
}

// Starting freezes participants in the arena while the preparation
// countdown runs.
type Starting struct {
	Countdown int
}

// Playing owns everything scoped to one round. It is built fresh when the
// round starts and dropped when it ends.
type Playing struct {
	ID        string
	StartedAt uint64
	Decay     *DecayQueue
	Falling   *FallingTracker
	Roster    *Roster
}

func newPlaying(tick uint64, players []EntityID) *Playing {
	return &Playing{
		ID:        uuid.NewString(),
		StartedAt: tick,
		Decay:     NewDecayQueue(),
		Falling:   NewFallingTracker(),
		Roster:    NewRoster(players),
	}
}

func (Waiting) Name() string  { return "waiting" }
func (Starting) Name() string { return "starting" }
func (*Playing) Name() string { return "playing" }

func (Waiting) isState()  {}
func (Starting) isState() {}
func (*Playing) isState() {}
