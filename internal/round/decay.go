package round

import (
	"fmt"

	"github.com/gammazero/deque"

	"github.com/lastclick/tntrun/internal/voxel"
)

// DecayEntry is a tile scheduled to drop at tick Due.
type DecayEntry struct {
	Due uint64
	Pos voxel.BlockPos
}

// DecayQueue is a FIFO of tiles waiting to drop. Each tile appears at most
// once, and due ticks never decrease from front to back.
type DecayQueue struct {
	q       deque.Deque[DecayEntry]
	pending map[voxel.BlockPos]struct{}
}

func NewDecayQueue() *DecayQueue {
	return &DecayQueue{pending: make(map[voxel.BlockPos]struct{})}
}

func (d *DecayQueue) Len() int {
	return d.q.Len()
}

// Pending reports whether pos already has an entry.
func (d *DecayQueue) Pending(pos voxel.BlockPos) bool {
	_, ok := d.pending[pos]
	return ok
}

// Push appends pos due at tick due. It returns false when pos is already
// queued. Pushing a due tick earlier than the current back is a programming
// error and panics.
func (d *DecayQueue) Push(due uint64, pos voxel.BlockPos) bool {
	if d.Pending(pos) {
		return false
	}
	if n := d.q.Len(); n > 0 && d.q.Back().Due > due {
		panic(fmt.Sprintf("decay queue: due tick %d before back %d", due, d.q.Back().Due))
	}
	d.q.PushBack(DecayEntry{Due: due, Pos: pos})
	d.pending[pos] = struct{}{}
	return true
}

// Front returns the next entry without removing it.
func (d *DecayQueue) Front() (DecayEntry, bool) {
	if d.q.Len() == 0 {
		return DecayEntry{}, false
	}
	return d.q.Front(), true
}

// Ready reports whether the front entry is due at tick.
func (d *DecayQueue) Ready(tick uint64) bool {
	e, ok := d.Front()
	return ok && e.Due <= tick
}

func (d *DecayQueue) Pop() (DecayEntry, bool) {
	if d.q.Len() == 0 {
		return DecayEntry{}, false
	}
	e := d.q.PopFront()
	delete(d.pending, e.Pos)
	return e, true
}

// Entries returns a copy of the queue in drain order.
func (d *DecayQueue) Entries() []DecayEntry {
	out := make([]DecayEntry, d.q.Len())
	for i := range out {
		out[i] = d.q.At(i)
	}
	return out
}
