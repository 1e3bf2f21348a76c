package round

import (
	"math/rand"
	"testing"

	"github.com/lastclick/tntrun/internal/voxel"
)

// ---------------------------------------------------------------------------
// Lobby and preparation
// ---------------------------------------------------------------------------

func TestWaitingStartsWithConnectedPlayers(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)

	r.Tick()

	s, ok := r.State().(Starting)
	if !ok || s.Countdown != 5 {
		t.Fatalf("expected Starting{5}, got %#v", r.State())
	}
	for _, id := range []EntityID{a, b} {
		p := h.players[id]
		if p.mode != Adventure {
			t.Errorf("player %d mode = %s, want adventure", id, p.mode)
		}
		if p.pos.Y != 22 || p.pos.X != 0 || p.pos.Z != 0 {
			t.Errorf("player %d not placed at the arena spawn: %+v", id, p.pos)
		}
	}
	if h.blocks[voxel.BlockPos{X: 0, Y: 20, Z: 0}] != voxel.TNT {
		t.Fatal("arena was not regenerated")
	}
}

func TestWaitingIdlesWithoutPlayers(t *testing.T) {
	h := newFakeHost()
	r := newTestRound(t, h)
	for i := 0; i < 100; i++ {
		r.Tick()
	}
	if w, ok := r.State().(Waiting); !ok || w.Countdown != 0 {
		t.Fatalf("expected Waiting{0}, got %#v", r.State())
	}
	if len(h.blocks) != 0 {
		t.Fatal("arena built with nobody connected")
	}
}

func TestStartingCountdownCues(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	h.connect("bob")
	r := newTestRound(t, h)
	r.Tick()

	tickToGate(r)
	if s := r.State().(Starting); s.Countdown != 4 {
		t.Fatalf("countdown = %d, want 4", s.Countdown)
	}
	cue := h.lastTitle(a)
	if cue.Title != "4" || cue.Subtitle != "Get ready" || cue.Color != Green {
		t.Fatalf("unexpected countdown cue %+v", cue)
	}
}

func TestStartingInterruptedWhenPlayerLeaves(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)
	r.Tick()
	tickToGate(r)

	h.disconnect(b)
	tickToGate(r)

	if s := r.State().(Starting); s.Countdown != 5 {
		t.Fatalf("countdown should reset to 5, got %d", s.Countdown)
	}
	if cue := h.lastTitle(a); cue.Title != "Preparation interrupted" {
		t.Fatalf("expected interruption cue, got %+v", cue)
	}

	// Already at the initial value: no repeated notice.
	before := len(h.titles[a])
	tickToGate(r)
	if len(h.titles[a]) != before {
		t.Fatal("interruption cue repeated while countdown was untouched")
	}
}

func TestStartingNeverCompletesAlone(t *testing.T) {
	h := newFakeHost()
	h.connect("alice")
	r := newTestRound(t, h)

	for i := 0; i < 2000; i++ {
		r.Tick()
		if _, ok := r.State().(*Playing); ok {
			t.Fatalf("round started with a single participant at tick %d", r.CurrentTick())
		}
	}
	if s, ok := r.State().(Starting); !ok || s.Countdown != 5 {
		t.Fatalf("expected Starting{5}, got %#v", r.State())
	}
}

func TestStartingToPlaying(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)

	var transitions []string
	r.SetHooks(Hooks{OnTransition: func(from, to State) {
		transitions = append(transitions, from.Name()+">"+to.Name())
	}})

	p := startPlaying(t, r)

	if p.Roster.Len() != 2 || !p.Roster.Contains(a) || !p.Roster.Contains(b) {
		t.Fatalf("roster = %v", p.Roster.IDs())
	}
	if p.Decay.Len() != 0 || p.Falling.Len() != 0 {
		t.Fatal("round state should start empty")
	}
	if p.ID == "" {
		t.Fatal("round id not assigned")
	}
	for _, id := range []EntityID{a, b} {
		if cue := h.lastTitle(id); cue.Title != "Run!" || cue.Color != Red {
			t.Errorf("player %d last cue = %+v", id, cue)
		}
	}
	// Five gated ticks after the start at tick 0.
	if r.CurrentTick() != 101 {
		t.Fatalf("round started at tick %d, want 101", r.CurrentTick())
	}
	if len(transitions) != 2 || transitions[0] != "waiting>starting" || transitions[1] != "starting>playing" {
		t.Fatalf("transitions = %v", transitions)
	}
}

func TestJoinHandlingByState(t *testing.T) {
	h := newFakeHost()
	h.connect("alice")
	h.connect("bob")
	r := newTestRound(t, h)
	r.Tick()

	c := h.connect("carol")
	r.Tick()
	if h.players[c].mode != Adventure {
		t.Fatalf("joining during preparation should place the player in the arena, mode %s", h.players[c].mode)
	}

	p := startPlaying(t, r)
	d := h.connect("dave")
	r.Tick()
	if h.players[d].mode != Spectator || h.players[d].pos != DefaultConfig().SpectatorSpawn {
		t.Fatalf("late joiner should spectate, got %+v", h.players[d])
	}
	if p.Roster.Contains(d) {
		t.Fatal("roster grew after the round started")
	}
}

// ---------------------------------------------------------------------------
// Floor decay
// ---------------------------------------------------------------------------

func TestFootprintCornersQueueTiles(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)
	p := startPlaying(t, r)

	h.moveTo(a, 0, 21, 0)     // straddles four tiles
	h.moveTo(b, 5.5, 21, 5.5) // centered on one tile
	r.Tick()

	if p.Decay.Len() != 5 {
		t.Fatalf("expected 5 queued tiles, got %v", p.Decay.Entries())
	}
	pushed := r.CurrentTick()
	for _, e := range p.Decay.Entries() {
		if e.Due != pushed+5 {
			t.Fatalf("entry %+v due at %d, want %d", e, e.Due, pushed+5)
		}
	}
	want := []voxel.BlockPos{{X: 0, Y: 20, Z: 0}, {X: -1, Y: 20, Z: 0}, {X: 0, Y: 20, Z: -1}, {X: -1, Y: 20, Z: -1}, {X: 5, Y: 20, Z: 5}}
	for _, pos := range want {
		if !p.Decay.Pending(pos) {
			t.Errorf("tile %v not queued", pos)
		}
	}

	// Standing still must not queue anything again before the drain.
	for i := 0; i < 4; i++ {
		r.Tick()
		if p.Decay.Len() != 5 {
			t.Fatalf("tick %d: queue length %d, want 5", r.CurrentTick(), p.Decay.Len())
		}
		if h.blocks[voxel.BlockPos{X: 5, Y: 20, Z: 5}] != voxel.TNT {
			t.Fatalf("tile dropped before its due tick %d", pushed+5)
		}
	}

	r.Tick()
	if r.CurrentTick() != pushed+5 {
		t.Fatalf("test bookkeeping off: tick %d", r.CurrentTick())
	}
	if p.Decay.Len() != 0 {
		t.Fatalf("due tiles not drained: %v", p.Decay.Entries())
	}
	for _, pos := range want {
		if h.blocks[pos] != voxel.Air {
			t.Errorf("tile %v still solid", pos)
		}
	}
	if p.Falling.Len() != 5 || len(h.falling) != 5 {
		t.Fatalf("expected 5 falling blocks, tracker %d world %d", p.Falling.Len(), len(h.falling))
	}
	for id, pos := range h.falling {
		if !p.Falling.Contains(id) {
			t.Errorf("falling block %d not tracked", id)
		}
		if y := pos.Y; y >= 20 {
			t.Errorf("falling block %d did not move on its first tick: y=%v", id, y)
		}
	}
}

func TestSpectatorOnFloorQueuesTile(t *testing.T) {
	h := newFakeHost()
	h.connect("alice")
	h.connect("bob")
	c := h.connect("carol")
	r := newTestRound(t, h)
	p := startPlaying(t, r)

	h.moveTo(c, 0.5, 4, 0.5)
	r.Tick()
	if p.Roster.Contains(c) || h.players[c].mode != Spectator {
		t.Fatal("carol should be an eliminated spectator")
	}

	h.moveTo(c, 5.5, 21, 5.5)
	r.Tick()
	if !p.Decay.Pending(voxel.BlockPos{X: 5, Y: 20, Z: 5}) {
		t.Fatalf("spectator on the floor did not queue its tile, queue %v", p.Decay.Entries())
	}
}

func TestDrainRetriesWhenChunkUnloaded(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	h.connect("bob")
	r := newTestRound(t, h)
	p := startPlaying(t, r)

	h.moveTo(a, 2.5, 21, 2.5)
	r.Tick()
	due := r.CurrentTick() + 5

	h.unloaded = true
	for r.CurrentTick() < due+3 {
		r.Tick()
	}
	if p.Decay.Len() != 1 {
		t.Fatalf("entry should stay queued while the chunk is unloaded, got %d", p.Decay.Len())
	}
	if p.Falling.Len() != 0 {
		t.Fatal("falling block spawned for a tile that was never removed")
	}

	h.unloaded = false
	r.Tick()
	if p.Decay.Len() != 0 || h.blocks[voxel.BlockPos{X: 2, Y: 20, Z: 2}] != voxel.Air {
		t.Fatal("tile not dropped once the chunk was back")
	}
}

func TestFallingBlocksDespawnedWhenRoundEnds(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)
	p := startPlaying(t, r)

	h.moveTo(a, 0.5, 21, 0.5)
	for i := 0; i < 7; i++ {
		r.Tick()
	}
	if p.Falling.Len() == 0 {
		t.Fatal("expected a falling block")
	}

	h.disconnect(b)
	r.Tick()
	if _, ok := r.State().(Waiting); !ok {
		t.Fatalf("expected the round to end, got %s", r.State().Name())
	}
	if len(h.falling) != 0 {
		t.Fatalf("%d falling blocks left in the world", len(h.falling))
	}
}

// ---------------------------------------------------------------------------
// Elimination, win and draw
// ---------------------------------------------------------------------------

func TestEliminationThenWin(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)
	p := startPlaying(t, r)

	var eliminated []EntityID
	r.SetHooks(Hooks{OnEliminated: func(id EntityID) { eliminated = append(eliminated, id) }})

	h.moveTo(a, 0, 4.9, 0)
	h.moveTo(b, 0.5, 21, 0.5)
	r.Tick()

	if len(eliminated) != 1 || eliminated[0] != a {
		t.Fatalf("eliminated = %v", eliminated)
	}
	titles := h.titles[a]
	if len(titles) < 2 || titles[len(titles)-2].Title != "You lose" {
		t.Fatalf("loser cues = %+v", titles)
	}
	if cue := h.lastTitle(a); cue.Title != "bob won!" || cue.Color != Yellow {
		t.Fatalf("loser final cue = %+v", cue)
	}
	if cue := h.lastTitle(b); cue.Title != "You won!" || cue.Color != Green {
		t.Fatalf("winner cue = %+v", cue)
	}
	if h.players[a].mode != Spectator || h.players[b].mode != Spectator {
		t.Fatal("both players should be spectators after the round")
	}
	if ids := p.Roster.IDs(); len(ids) != 1 || ids[0] != b {
		t.Fatalf("final roster = %v", ids)
	}
	if w, ok := r.State().(Waiting); !ok || w.Countdown != 5 {
		t.Fatalf("expected Waiting{5}, got %#v", r.State())
	}
}

func TestLoseThresholdIsInclusive(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	c := h.connect("carol")
	r := newTestRound(t, h)
	p := startPlaying(t, r)

	h.moveTo(a, 0.5, 5.0, 0.5)
	h.moveTo(b, 3.5, 5.01, 3.5)
	h.moveTo(c, 6.5, 21, 6.5)
	r.Tick()

	if p.Roster.Contains(a) {
		t.Fatal("player exactly at the lose height should be out")
	}
	if !p.Roster.Contains(b) || !p.Roster.Contains(c) {
		t.Fatalf("roster = %v", p.Roster.IDs())
	}
	if _, ok := r.State().(*Playing); !ok {
		t.Fatal("two players left, round should continue")
	}
}

func TestDraw(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)
	startPlaying(t, r)

	h.moveTo(a, 0, 2, 0)
	h.moveTo(b, 1, 3, 1)
	r.Tick()

	for _, id := range []EntityID{a, b} {
		if cue := h.lastTitle(id); cue.Title != "Draw!" {
			t.Errorf("player %d last cue = %+v", id, cue)
		}
	}
	if w, ok := r.State().(Waiting); !ok || w.Countdown != 5 {
		t.Fatalf("expected Waiting{5}, got %#v", r.State())
	}
}

func TestDisconnectCountsAsLoss(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	b := h.connect("bob")
	r := newTestRound(t, h)
	startPlaying(t, r)

	h.players[b].removed = true
	r.Tick()

	if cue := h.lastTitle(a); cue.Title != "You won!" {
		t.Fatalf("remaining player should win, got %+v", cue)
	}
	if _, ok := r.State().(Waiting); !ok {
		t.Fatalf("expected Waiting, got %s", r.State().Name())
	}
}

func TestNextRoundAfterResults(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	h.connect("bob")
	r := newTestRound(t, h)
	startPlaying(t, r)

	h.moveTo(a, 0, 0, 0)
	r.Tick()

	for want := 4; want >= 0; want-- {
		tickToGate(r)
		if w, ok := r.State().(Waiting); !ok || w.Countdown != want {
			t.Fatalf("expected Waiting{%d}, got %#v", want, r.State())
		}
	}
	tickToGate(r)
	if _, ok := r.State().(Starting); !ok {
		t.Fatalf("expected a new preparation, got %s", r.State().Name())
	}
}

// ---------------------------------------------------------------------------
// Arena readiness
// ---------------------------------------------------------------------------

func TestArenaRetriedUntilRegionLoaded(t *testing.T) {
	h := newFakeHost()
	h.connect("alice")
	h.connect("bob")
	h.unloaded = true
	r := newTestRound(t, h)

	r.Tick()
	if _, ok := r.State().(Starting); !ok {
		t.Fatalf("preparation should proceed without the arena, got %s", r.State().Name())
	}
	if !r.ArenaPending() {
		t.Fatal("arena should be pending")
	}

	r.Tick()
	if !r.ArenaPending() {
		t.Fatal("arena cannot complete while unloaded")
	}

	h.unloaded = false
	r.Tick()
	if r.ArenaPending() {
		t.Fatal("arena should be built once the region loads")
	}
	if h.blocks[voxel.BlockPos{X: 0, Y: 10, Z: 0}] != voxel.TNT {
		t.Fatal("arena floor missing")
	}
}

func TestArenaRetryStopsWhenRoundStarts(t *testing.T) {
	h := newFakeHost()
	a := h.connect("alice")
	h.connect("bob")
	h.unloaded = true
	r := newTestRound(t, h)
	r.Tick()
	if !r.ArenaPending() {
		t.Fatal("arena should be pending")
	}

	// The region stays unloaded through preparation.
	p := startPlaying(t, r)
	if r.ArenaPending() {
		t.Fatal("retry must not carry into the round")
	}

	// Floor built by hand once the region is back; a tile then drops.
	h.unloaded = false
	if err := DefaultConfig().Arena().Regenerate(h); err != nil {
		t.Fatal(err)
	}
	h.moveTo(a, 0.5, 21, 0.5)
	tile := voxel.BlockPos{X: 0, Y: 20, Z: 0}
	tickUntil(t, r, 20, func() bool { return h.blocks[tile] == voxel.Air })

	for i := 0; i < 20 && r.State() == State(p); i++ {
		r.Tick()
		if h.blocks[tile] != voxel.Air {
			t.Fatalf("tick %d: dropped tile %v restored", r.CurrentTick(), tile)
		}
	}
}

// ---------------------------------------------------------------------------
// Invariants under random movement
// ---------------------------------------------------------------------------

func TestDecayInvariantsUnderRandomWalk(t *testing.T) {
	h := newFakeHost()
	var ids []EntityID
	for _, name := range []string{"a", "b", "c", "d"} {
		ids = append(ids, h.connect(name))
	}
	r := newTestRound(t, h)
	p := startPlaying(t, r)

	rng := rand.New(rand.NewSource(7))
	for _, id := range ids {
		h.moveTo(id, rng.Float64()*10-5, 21, rng.Float64()*10-5)
	}

	rosterLen := p.Roster.Len()
	for i := 0; i < 400 && r.State() == State(p); i++ {
		for _, id := range ids {
			pl, ok := h.players[id]
			if !ok || pl.mode == Spectator {
				continue
			}
			pl.pos.X += rng.Float64()*0.6 - 0.3
			pl.pos.Z += rng.Float64()*0.6 - 0.3
			under := pl.pos.Block().Down()
			if h.blocks[under] == voxel.Air {
				pl.pos.Y -= 0.5
			}
		}
		r.Tick()

		seen := make(map[voxel.BlockPos]bool)
		var prev uint64
		for _, e := range p.Decay.Entries() {
			if seen[e.Pos] {
				t.Fatalf("tick %d: duplicate entry for %v", r.CurrentTick(), e.Pos)
			}
			seen[e.Pos] = true
			if e.Due < prev {
				t.Fatalf("tick %d: due ticks out of order", r.CurrentTick())
			}
			prev = e.Due
		}
		if front, ok := p.Decay.Front(); ok && front.Due <= r.CurrentTick() {
			t.Fatalf("tick %d: entry due at %d left undrained", r.CurrentTick(), front.Due)
		}
		if n := p.Roster.Len(); n > rosterLen {
			t.Fatalf("roster grew from %d to %d", rosterLen, n)
		} else {
			rosterLen = n
		}
	}
}

func TestSystemOrder(t *testing.T) {
	r := newTestRound(t, newFakeHost())
	want := []string{"join", "start", "arena", "prune", "tick_counter", "decay_scan", "decay_drain", "falling", "lose", "winner"}
	got := r.Systems()
	if len(got) != len(want) {
		t.Fatalf("got %d systems", len(got))
	}
	for i, s := range got {
		if s.Name != want[i] {
			t.Errorf("system %d = %s, want %s", i, s.Name, want[i])
		}
	}
}
