package game

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"github.com/lastclick/tntrun/internal/entity"
	"github.com/lastclick/tntrun/internal/round"
	"github.com/lastclick/tntrun/internal/voxel"
	"github.com/lastclick/tntrun/internal/world"
)

// simFallSpeed is how far an unsupported bot drops per tick.
const simFallSpeed = 0.5

// SimConfig fully describes a deterministic arena simulation.
type SimConfig struct {
	Round round.Config // zero value uses round.DefaultConfig
	Bots  int
	Seed  int64

	Rounds     int     // stop after this many finished rounds; 0 defaults to 1
	MaxTicks   int     // safety cap; 0 defaults to 12000 (10 min at 20 TPS)
	Speed      float64 // blocks per tick; 0 defaults to 0.2
	TurnChance float64 // per-tick chance a bot picks a new heading; 0 defaults to 0.05
	SilentMode bool    // skip event recording for batch runs
}

type SimEvent struct {
	Tick   uint64
	Type   string // "join", "transition", "elimination", "finish"
	Player round.EntityID
	Detail string
}

// SimRound summarizes one finished round.
type SimRound struct {
	ID           string
	StartedAt    uint64
	EndedAt      uint64
	Players      int
	Winner       round.EntityID // zero on a draw
	Eliminations []round.EntityID
	TilesDropped int
}

type SimResult struct {
	Events       []SimEvent
	Rounds       []SimRound
	FinishReason string // "rounds", "max_ticks"
	TotalTicks   uint64
}

type simBot struct {
	id      round.EntityID
	session string
	heading float64
}

// RunSimulation drives a full engine with scripted bots. No goroutines, no
// channels read from outside, no wall clock: everything is tick steps and a
// seeded random source, so equal configs give equal results.
//
// Per tick:
//  1. Bots in the arena walk (only while playing) and fall when unsupported
//  2. Their positions are applied as Move commands
//  3. The engine steps
func RunSimulation(cfg SimConfig) (SimResult, error) {
	rc := cfg.Round
	if rc.TicksPerSecond == 0 {
		rc = round.DefaultConfig()
	}
	rounds := cfg.Rounds
	if rounds <= 0 {
		rounds = 1
	}
	maxTicks := cfg.MaxTicks
	if maxTicks <= 0 {
		maxTicks = 12000
	}
	speed := cfg.Speed
	if speed <= 0 {
		speed = 0.2
	}
	turn := cfg.TurnChance
	if turn <= 0 {
		turn = 0.05
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	blocks := world.NewStore()
	blocks.LoadRegion(rc.Arena().Bounds())
	ents := entity.NewStore(logger)

	var (
		result  SimResult
		current *SimRound
		e       *Engine
	)
	record := func(ev SimEvent) {
		if !cfg.SilentMode {
			result.Events = append(result.Events, ev)
		}
	}

	hooks := round.Hooks{
		OnTransition: func(from, to round.State) {
			tick := e.round.CurrentTick()
			record(SimEvent{Tick: tick, Type: "transition", Detail: from.Name() + ">" + to.Name()})
			switch s := to.(type) {
			case *round.Playing:
				current = &SimRound{ID: s.ID, StartedAt: tick, Players: s.Roster.Len()}
			case round.Waiting:
				p, ok := from.(*round.Playing)
				if !ok || current == nil {
					return
				}
				current.EndedAt = tick
				if ids := p.Roster.IDs(); len(ids) == 1 {
					current.Winner = ids[0]
				}
				record(SimEvent{Tick: tick, Type: "finish", Player: current.Winner,
					Detail: fmt.Sprintf("ticks=%d tiles=%d", tick-current.StartedAt, current.TilesDropped)})
				result.Rounds = append(result.Rounds, *current)
				current = nil
			}
		},
		OnEliminated: func(id round.EntityID) {
			if current != nil {
				current.Eliminations = append(current.Eliminations, id)
			}
			record(SimEvent{Tick: e.round.CurrentTick(), Type: "elimination", Player: id})
		},
		OnTileDrop: func(voxel.BlockPos) {
			if current != nil {
				current.TilesDropped++
			}
		},
	}

	e, err := NewEngine(rc, blocks, ents, nil, Options{Rand: rng, Hooks: hooks}, logger)
	if err != nil {
		return SimResult{}, err
	}

	bots := make([]*simBot, cfg.Bots)
	for i := range bots {
		session := fmt.Sprintf("bot-%d", i+1)
		reply := make(chan JoinResult, 1)
		e.handleCommand(Join{Session: session, Name: session, Reply: reply})
		res := <-reply
		bots[i] = &simBot{id: res.PlayerID, session: session, heading: rng.Float64() * 2 * math.Pi}
		record(SimEvent{Type: "join", Player: res.PlayerID, Detail: session})
	}

	edge := float64(rc.LayerRadius) - 1
	result.FinishReason = "max_ticks"
	for tick := 1; tick <= maxTicks; tick++ {
		_, playing := e.round.State().(*round.Playing)
		for _, b := range bots {
			p, ok := ents.Lookup(b.id)
			if !ok || p.Gamemode != round.Adventure.String() {
				continue
			}
			pos := p.Pos
			if playing {
				if rng.Float64() < turn {
					b.heading = rng.Float64() * 2 * math.Pi
				}
				nx := pos.X + math.Cos(b.heading)*speed
				nz := pos.Z + math.Sin(b.heading)*speed
				if nx*nx+nz*nz > edge*edge {
					b.heading += math.Pi
				} else {
					pos.X, pos.Z = nx, nz
				}
			}
			pos = fall(blocks, pos)
			e.handleCommand(Move{Session: b.session, Pos: pos})
		}

		e.Step()
		result.TotalTicks = e.round.CurrentTick()
		if len(result.Rounds) >= rounds {
			result.FinishReason = "rounds"
			break
		}
	}

	return result, nil
}

// fall lowers an unsupported position by simFallSpeed, landing on top of the
// first solid block it crosses.
func fall(blocks *world.Store, pos voxel.Position) voxel.Position {
	next := pos.Y - simFallSpeed
	bx, bz := int32(math.Floor(pos.X)), int32(math.Floor(pos.Z))
	for y := int32(math.Floor(pos.Y)) - 1; float64(y+1) >= next; y-- {
		st, err := blocks.Block(voxel.BlockPos{X: bx, Y: y, Z: bz})
		if err == nil && st != voxel.Air {
			pos.Y = float64(y + 1)
			return pos
		}
	}
	pos.Y = next
	return pos
}
