package round

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/lastclick/tntrun/internal/voxel"
)

var errUnloaded = errors.New("fake chunk not loaded")

type fakePlayer struct {
	name    string
	pos     voxel.Position
	mode    Gamemode
	removed bool
}

// fakeHost implements every capability the round needs against plain maps.
type fakeHost struct {
	players   map[EntityID]*fakePlayer
	order     []EntityID
	joined    []EntityID
	titles    map[EntityID][]Title
	blocks    map[voxel.BlockPos]voxel.BlockState
	unloaded  bool
	falling   map[EntityID]voxel.Position
	despawned map[EntityID]int
	nextID    EntityID
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		players:   make(map[EntityID]*fakePlayer),
		titles:    make(map[EntityID][]Title),
		blocks:    make(map[voxel.BlockPos]voxel.BlockState),
		falling:   make(map[EntityID]voxel.Position),
		despawned: make(map[EntityID]int),
		nextID:    1,
	}
}

func (h *fakeHost) connect(name string) EntityID {
	id := h.nextID
	h.nextID++
	h.players[id] = &fakePlayer{name: name, pos: voxel.Position{Y: 27}}
	h.order = append(h.order, id)
	h.joined = append(h.joined, id)
	return id
}

func (h *fakeHost) disconnect(id EntityID) {
	delete(h.players, id)
}

func (h *fakeHost) moveTo(id EntityID, x, y, z float64) {
	h.players[id].pos = voxel.Position{X: x, Y: y, Z: z}
}

func (h *fakeHost) lastTitle(id EntityID) Title {
	ts := h.titles[id]
	if len(ts) == 0 {
		return Title{}
	}
	return ts[len(ts)-1]
}

func (h *fakeHost) Joined() []EntityID {
	out := h.joined
	h.joined = nil
	return out
}

func (h *fakeHost) Connected() []Player {
	var out []Player
	for _, id := range h.order {
		p, ok := h.players[id]
		if !ok || p.removed {
			continue
		}
		out = append(out, Player{ID: id, Name: p.name, Pos: p.pos})
	}
	return out
}

func (h *fakeHost) Player(id EntityID) (Player, error) {
	p, ok := h.players[id]
	if !ok {
		return Player{}, fmt.Errorf("player %d: %w", id, ErrEntityNotFound)
	}
	return Player{ID: id, Name: p.name, Pos: p.pos, Removed: p.removed}, nil
}

func (h *fakeHost) Teleport(id EntityID, pos voxel.Position) error {
	p, ok := h.players[id]
	if !ok {
		return ErrEntityNotFound
	}
	p.pos = pos
	return nil
}

func (h *fakeHost) SetGamemode(id EntityID, mode Gamemode) error {
	p, ok := h.players[id]
	if !ok {
		return ErrEntityNotFound
	}
	p.mode = mode
	return nil
}

func (h *fakeHost) Block(pos voxel.BlockPos) (voxel.BlockState, error) {
	if h.unloaded {
		return voxel.Air, errUnloaded
	}
	return h.blocks[pos], nil
}

func (h *fakeHost) SetBlock(pos voxel.BlockPos, state voxel.BlockState) error {
	if h.unloaded {
		return errUnloaded
	}
	h.blocks[pos] = state
	return nil
}

func (h *fakeHost) RegionLoaded(_, _ voxel.BlockPos) bool {
	return !h.unloaded
}

func (h *fakeHost) SpawnFallingBlock(pos voxel.Position, _ voxel.BlockState) (EntityID, error) {
	id := h.nextID
	h.nextID++
	h.falling[id] = pos
	return id, nil
}

func (h *fakeHost) Position(id EntityID) (voxel.Position, error) {
	pos, ok := h.falling[id]
	if !ok {
		return voxel.Position{}, ErrEntityNotFound
	}
	return pos, nil
}

func (h *fakeHost) Move(id EntityID, pos voxel.Position) error {
	if _, ok := h.falling[id]; !ok {
		return ErrEntityNotFound
	}
	h.falling[id] = pos
	return nil
}

func (h *fakeHost) Despawn(id EntityID) error {
	if _, ok := h.falling[id]; !ok {
		return ErrEntityNotFound
	}
	delete(h.falling, id)
	h.despawned[id]++
	return nil
}

func (h *fakeHost) SendTitle(id EntityID, t Title) {
	h.titles[id] = append(h.titles[id], t)
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRound(t *testing.T, h *fakeHost) *Round {
	t.Helper()
	r, err := New(DefaultConfig(), Env{
		Players:  h,
		Blocks:   h,
		Entities: h,
		Notifier: h,
		Rand:     fixedRand(0.5),
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

// tickUntil ticks until cond holds, failing after max ticks.
func tickUntil(t *testing.T, r *Round, max int, cond func() bool) {
	t.Helper()
	for i := 0; i < max; i++ {
		r.Tick()
		if cond() {
			return
		}
	}
	t.Fatalf("condition not met after %d ticks (state %s, tick %d)", max, r.State().Name(), r.CurrentTick())
}

// tickToGate ticks until the next tick that runs the countdown, and runs it.
func tickToGate(r *Round) {
	r.Tick()
	for r.CurrentTick()%r.cfg.TicksPerSecond != 1 {
		r.Tick()
	}
}

func startPlaying(t *testing.T, r *Round) *Playing {
	t.Helper()
	tickUntil(t, r, 400, func() bool {
		_, ok := r.State().(*Playing)
		return ok
	})
	return r.State().(*Playing)
}
