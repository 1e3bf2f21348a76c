package game

import (
	"math"
	"sync"
	"time"

	"github.com/lastclick/tntrun/internal/voxel"
)

// MoveLimiter drops position updates that arrive faster than minInterval
// for the same session, so one client cannot flood the engine inbox.
type MoveLimiter struct {
	mu          sync.Mutex
	lastMove    map[string]time.Time
	minInterval time.Duration
	now         func() time.Time
}

func NewMoveLimiter(minInterval time.Duration) *MoveLimiter {
	return &MoveLimiter{
		lastMove:    make(map[string]time.Time),
		minInterval: minInterval,
		now:         time.Now,
	}
}

// Allow reports whether a move from session may be forwarded now.
func (ml *MoveLimiter) Allow(session string) bool {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	last, ok := ml.lastMove[session]
	if ok && now.Sub(last) < ml.minInterval {
		return false
	}
	ml.lastMove[session] = now
	return true
}

// Reset clears tracking for a session (called when it disconnects).
func (ml *MoveLimiter) Reset(session string) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.lastMove, session)
}

// finitePosition rejects positions with NaN or infinite coordinates.
func finitePosition(p voxel.Position) bool {
	for _, v := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
