package round

// Snapshot is a read-only view of the round for clients and observers.
type Snapshot struct {
	State        string     `json:"state"`
	Countdown    int        `json:"countdown"`
	Tick         uint64     `json:"tick"`
	RoundID      string     `json:"round_id,omitempty"`
	Roster       []EntityID `json:"roster,omitempty"`
	PendingTiles int        `json:"pending_tiles"`
	Falling      int        `json:"falling"`
	ArenaPending bool       `json:"arena_pending,omitempty"`
}

func (r *Round) Snapshot() Snapshot {
	snap := Snapshot{
		State:        r.state.Name(),
		Tick:         r.tick,
		ArenaPending: r.arenaPending,
	}
	switch s := r.state.(type) {
	case Waiting:
		snap.Countdown = s.Countdown
	case Starting:
		snap.Countdown = s.Countdown
	case *Playing:
		snap.RoundID = s.ID
		snap.Roster = s.Roster.IDs()
		snap.PendingTiles = s.Decay.Len()
		snap.Falling = s.Falling.Len()
	}
	return snap
}
