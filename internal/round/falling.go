package round

import (
	"errors"
	"log/slog"
)

// FallingTracker holds the falling block entities of the current round.
type FallingTracker struct {
	ids []EntityID
}

func NewFallingTracker() *FallingTracker {
	return &FallingTracker{}
}

// Add starts tracking id. Tracking an id twice is a no-op, so each block
// falls exactly one step per tick.
func (f *FallingTracker) Add(id EntityID) {
	if f.Contains(id) {
		return
	}
	f.ids = append(f.ids, id)
}

func (f *FallingTracker) Len() int {
	return len(f.ids)
}

func (f *FallingTracker) Contains(id EntityID) bool {
	for _, e := range f.ids {
		if e == id {
			return true
		}
	}
	return false
}

// Advance lowers every tracked entity by step. Entities at or below despawnY
// are despawned and dropped, as are entities the host no longer knows.
// It returns the ids that left tracking.
func (f *FallingTracker) Advance(ents Entities, step, despawnY float64, logger *slog.Logger) []EntityID {
	var gone []EntityID
	kept := f.ids[:0]
	for _, id := range f.ids {
		pos, err := ents.Position(id)
		if err != nil {
			if !errors.Is(err, ErrEntityNotFound) {
				logger.Warn("falling block lookup failed", "entity", id, "err", err)
			}
			gone = append(gone, id)
			continue
		}
		pos.Y -= step
		if pos.Y <= despawnY {
			if err := ents.Despawn(id); err != nil && !errors.Is(err, ErrEntityNotFound) {
				logger.Warn("despawn falling block", "entity", id, "err", err)
			}
			gone = append(gone, id)
			continue
		}
		if err := ents.Move(id, pos); err != nil {
			logger.Warn("move falling block", "entity", id, "err", err)
		}
		kept = append(kept, id)
	}
	f.ids = kept
	return gone
}

// Clear despawns everything still tracked.
func (f *FallingTracker) Clear(ents Entities, logger *slog.Logger) {
	for _, id := range f.ids {
		if err := ents.Despawn(id); err != nil && !errors.Is(err, ErrEntityNotFound) {
			logger.Warn("despawn falling block", "entity", id, "err", err)
		}
	}
	f.ids = nil
}
