package round

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lastclick/tntrun/internal/voxel"
)

// System is one named step of the per-tick pipeline.
type System struct {
	Name string
	Run  func()
}

// Hooks are optional callbacks fired from inside Tick.
type Hooks struct {
	OnTransition func(from, to State)
	OnEliminated func(id EntityID)
	OnTileDrop   func(pos voxel.BlockPos)
}

// Round is the round state machine. It is not safe for concurrent use: the
// owner calls Tick once per clock tick from a single goroutine.
type Round struct {
	cfg    Config
	env    Env
	arena  Arena
	hooks  Hooks
	logger *slog.Logger

	state        State
	tick         uint64
	arenaPending bool
	systems      []System
}

func New(cfg Config, env Env, logger *slog.Logger) (*Round, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("round config: %w", err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Round{
		cfg:    cfg,
		env:    env,
		arena:  cfg.Arena(),
		logger: logger,
		state:  Waiting{Countdown: 0},
	}
	r.systems = []System{
		{"join", r.handleJoins},
		{"start", r.advanceCountdown},
		{"arena", r.retryArena},
		{"prune", r.pruneRoster},
		{"tick_counter", r.advanceTick},
		{"decay_scan", r.scanDecay},
		{"decay_drain", r.drainDecay},
		{"falling", r.advanceFalling},
		{"lose", r.eliminate},
		{"winner", r.resolve},
	}
	return r, nil
}

func (r *Round) SetHooks(h Hooks) {
	r.hooks = h
}

func (r *Round) State() State {
	return r.state
}

func (r *Round) CurrentTick() uint64 {
	return r.tick
}

func (r *Round) Config() Config {
	return r.cfg
}

// ArenaPending reports whether the last arena regeneration has not completed.
func (r *Round) ArenaPending() bool {
	return r.arenaPending
}

// Systems returns the pipeline in execution order.
func (r *Round) Systems() []System {
	return append([]System(nil), r.systems...)
}

// Tick runs every system once, in order.
func (r *Round) Tick() {
	for _, s := range r.systems {
		s.Run()
	}
}

func (r *Round) transition(to State) {
	from := r.state
	r.state = to
	if p, ok := from.(*Playing); ok {
		p.Falling.Clear(r.env.Entities, r.logger)
	}
	switch s := to.(type) {
	case Waiting:
		r.arenaPending = false
	case *Playing:
		if r.arenaPending {
			// Regenerating now would restore tiles the round drops.
			r.arenaPending = false
			r.logger.Warn("round started on a degraded arena", "round", s.ID)
		}
	}
	r.logger.Info("round transition", "from", from.Name(), "to", to.Name(), "tick", r.tick)
	if r.hooks.OnTransition != nil {
		r.hooks.OnTransition(from, to)
	}
}

func (r *Round) handleJoins() {
	for _, id := range r.env.Players.Joined() {
		switch r.state.(type) {
		case Starting:
			r.respawnInArena(id)
		case Waiting, *Playing:
			r.respawnAsSpectator(id)
		}
	}
}

func (r *Round) advanceCountdown() {
	if r.tick%r.cfg.TicksPerSecond != 0 {
		return
	}
	switch s := r.state.(type) {
	case Waiting:
		if s.Countdown > 0 {
			r.state = Waiting{Countdown: s.Countdown - 1}
			return
		}
		players := r.env.Players.Connected()
		if len(players) == 0 {
			return
		}
		r.transition(Starting{Countdown: r.cfg.PreparationTime})
		for _, p := range players {
			r.respawnInArena(p.ID)
		}
		r.regenerateArena()

	case Starting:
		players := r.env.Players.Connected()
		if len(players) > 1 {
			left := s.Countdown - 1
			if left <= 0 {
				ids := make([]EntityID, len(players))
				for i, p := range players {
					ids[i] = p.ID
				}
				r.transition(newPlaying(r.tick, ids))
				r.broadcast(players, runCue())
				return
			}
			r.state = Starting{Countdown: left}
			r.broadcast(players, countdownCue(left))
			return
		}
		if s.Countdown != r.cfg.PreparationTime {
			r.broadcast(players, interruptedCue())
			r.logger.Info("preparation interrupted", "players", len(players))
		}
		r.state = Starting{Countdown: r.cfg.PreparationTime}
	}
}

func (r *Round) regenerateArena() {
	if err := r.arena.Regenerate(r.env.Blocks); err != nil {
		r.arenaPending = true
		r.logger.Warn("arena regeneration deferred", "err", err)
		return
	}
	r.arenaPending = false
	r.logger.Info("arena regenerated", "tiles", r.arena.Tiles())
}

func (r *Round) retryArena() {
	if !r.arenaPending {
		return
	}
	if _, ok := r.state.(Starting); !ok {
		r.arenaPending = false
		return
	}
	r.regenerateArena()
}

func (r *Round) pruneRoster() {
	p, ok := r.state.(*Playing)
	if !ok {
		return
	}
	gone := p.Roster.Retain(func(id EntityID) bool {
		pl, err := r.env.Players.Player(id)
		return err == nil && !pl.Removed
	})
	for _, id := range gone {
		r.logger.Info("player left the round", "round", p.ID, "player", id)
	}
}

func (r *Round) advanceTick() {
	r.tick++
}

// footprint returns the blocks under the four corners of a player's hitbox.
func (r *Round) footprint(pos voxel.Position) [4]voxel.BlockPos {
	h := r.cfg.PlayerWidth / 2
	return [4]voxel.BlockPos{
		pos.Offset(h, 0, h).Block().Down(),
		pos.Offset(-h, 0, h).Block().Down(),
		pos.Offset(h, 0, -h).Block().Down(),
		pos.Offset(-h, 0, -h).Block().Down(),
	}
}

func (r *Round) scanDecay() {
	p, ok := r.state.(*Playing)
	if !ok {
		return
	}
	// Every live player decays the floor, spectators included.
	for _, pl := range r.env.Players.Connected() {
		for _, tile := range r.footprint(pl.Pos) {
			if p.Decay.Pending(tile) {
				continue
			}
			state, err := r.env.Blocks.Block(tile)
			if err != nil || state != r.cfg.Floor {
				continue
			}
			p.Decay.Push(r.tick+r.cfg.FallDelay, tile)
		}
	}
}

func (r *Round) drainDecay() {
	p, ok := r.state.(*Playing)
	if !ok {
		return
	}
	for p.Decay.Ready(r.tick) {
		e, _ := p.Decay.Front()
		if err := r.env.Blocks.SetBlock(e.Pos, voxel.Air); err != nil {
			// Keep the entry at the front and retry next tick.
			r.logger.Warn("tile drop deferred", "pos", e.Pos.String(), "err", err)
			return
		}
		p.Decay.Pop()
		if r.hooks.OnTileDrop != nil {
			r.hooks.OnTileDrop(e.Pos)
		}
		id, err := r.env.Entities.SpawnFallingBlock(e.Pos.Position(), r.cfg.Floor)
		if err != nil {
			r.logger.Warn("spawn falling block", "pos", e.Pos.String(), "err", err)
			continue
		}
		p.Falling.Add(id)
	}
}

func (r *Round) advanceFalling() {
	p, ok := r.state.(*Playing)
	if !ok {
		return
	}
	p.Falling.Advance(r.env.Entities, r.cfg.FallStep, r.cfg.DespawnY, r.logger)
}

func (r *Round) eliminate() {
	p, ok := r.state.(*Playing)
	if !ok {
		return
	}
	var lost []EntityID
	for _, id := range p.Roster.IDs() {
		pl, err := r.env.Players.Player(id)
		if err != nil {
			continue
		}
		if pl.Pos.Y > r.cfg.LoseY {
			continue
		}
		r.env.Notifier.SendTitle(id, loseCue())
		r.respawnAsSpectator(id)
		lost = append(lost, id)
	}
	for _, id := range lost {
		p.Roster.Remove(id)
		r.logger.Info("player eliminated", "round", p.ID, "player", id, "remaining", p.Roster.Len())
		if r.hooks.OnEliminated != nil {
			r.hooks.OnEliminated(id)
		}
	}
}

func (r *Round) resolve() {
	p, ok := r.state.(*Playing)
	if !ok {
		return
	}
	switch p.Roster.Len() {
	case 0:
		r.broadcast(r.env.Players.Connected(), drawCue())
		r.logger.Info("round draw", "round", p.ID, "ticks", r.tick-p.StartedAt)
	case 1:
		winnerID := p.Roster.IDs()[0]
		name := fmt.Sprintf("Player %d", winnerID)
		if w, err := r.env.Players.Player(winnerID); err == nil {
			name = w.DisplayName()
		}
		for _, pl := range r.env.Players.Connected() {
			if pl.ID == winnerID {
				r.respawnAsSpectator(pl.ID)
				r.env.Notifier.SendTitle(pl.ID, wonCue())
				continue
			}
			r.env.Notifier.SendTitle(pl.ID, otherWonCue(name))
		}
		r.logger.Info("round won", "round", p.ID, "winner", winnerID, "name", name, "ticks", r.tick-p.StartedAt)
	default:
		return
	}
	r.transition(Waiting{Countdown: r.cfg.ResultsTime})
}

func (r *Round) broadcast(players []Player, t Title) {
	for _, p := range players {
		r.env.Notifier.SendTitle(p.ID, t)
	}
}

func (r *Round) respawnAsSpectator(id EntityID) {
	if err := r.env.Players.SetGamemode(id, Spectator); err != nil {
		r.logEntityErr("set spectator", id, err)
		return
	}
	if err := r.env.Players.Teleport(id, r.cfg.SpectatorSpawn); err != nil {
		r.logEntityErr("teleport spectator", id, err)
	}
}

func (r *Round) respawnInArena(id EntityID) {
	if err := r.env.Players.SetGamemode(id, Adventure); err != nil {
		r.logEntityErr("set adventure", id, err)
		return
	}
	spawn := r.cfg.SpawnCenter
	spawn.X += r.jitter()
	spawn.Z += r.jitter()
	if err := r.env.Players.Teleport(id, spawn); err != nil {
		r.logEntityErr("teleport into arena", id, err)
	}
}

// jitter is uniform in [-SpawnRadius, SpawnRadius).
func (r *Round) jitter() float64 {
	return (r.env.Rand.Float64()*2 - 1) * r.cfg.SpawnRadius
}

func (r *Round) logEntityErr(msg string, id EntityID, err error) {
	if errors.Is(err, ErrEntityNotFound) {
		r.logger.Debug(msg, "player", id, "err", err)
		return
	}
	r.logger.Warn(msg, "player", id, "err", err)
}
