package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lastclick/tntrun/internal/cache"
	"github.com/lastclick/tntrun/internal/entity"
	"github.com/lastclick/tntrun/internal/round"
	"github.com/lastclick/tntrun/internal/server"
	"github.com/lastclick/tntrun/internal/store"
	"github.com/lastclick/tntrun/internal/voxel"
	"github.com/lastclick/tntrun/internal/world"
)

// Outbox delivers messages to connected clients.
type Outbox interface {
	SendTo(session string, msg server.WSMessage)
	Broadcast(msg server.WSMessage)
}

// ProfileWriter registers player profiles on join and stamps them on leave.
type ProfileWriter interface {
	Upsert(ctx context.Context, name string) (*store.Player, error)
	Touch(ctx context.Context, name string) error
}

// Options carries the optional collaborators of an Engine.
type Options struct {
	Publisher *cache.Publisher
	Profiles  ProfileWriter
	Metrics   *server.Metrics
	Rand      round.Rand
	// Hooks run after the engine's own handling of each round event.
	Hooks round.Hooks
}

// Engine owns the arena: the round, the block store and the entity store. All
// of them are touched only from the goroutine calling Step; everything else
// talks to the engine through Inbox.
type Engine struct {
	Inbox chan any

	cfg      round.Config
	round    *round.Round
	world    *world.Store
	ents     *entity.Store
	out      Outbox
	pub      *cache.Publisher
	profiles ProfileWriter
	metrics  *server.Metrics
	moves    *MoveLimiter
	hooks    round.Hooks
	logger   *slog.Logger

	sessions       map[string]round.EntityID
	namesMu        sync.Mutex
	names          map[string]string // session -> profile name, network side
	broadcastEvery uint64
	view           atomic.Pointer[server.ArenaView]
	done           chan struct{}
}

func NewEngine(cfg round.Config, blocks *world.Store, ents *entity.Store, out Outbox, opts Options, logger *slog.Logger) (*Engine, error) {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	broadcastEvery := cfg.TicksPerSecond / 10
	if broadcastEvery == 0 {
		broadcastEvery = 1
	}
	e := &Engine{
		Inbox:          make(chan any, 256),
		cfg:            cfg,
		world:          blocks,
		ents:           ents,
		out:            out,
		pub:            opts.Publisher,
		profiles:       opts.Profiles,
		metrics:        opts.Metrics,
		moves:          NewMoveLimiter(time.Second / time.Duration(max(cfg.TicksPerSecond, 1))),
		hooks:          opts.Hooks,
		logger:         logger,
		sessions:       make(map[string]round.EntityID),
		names:          make(map[string]string),
		broadcastEvery: broadcastEvery,
		done:           make(chan struct{}),
	}

	r, err := round.New(cfg, round.Env{
		Players:  ents,
		Blocks:   blocks,
		Entities: ents,
		Notifier: e,
		Rand:     rng,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("new round: %w", err)
	}
	r.SetHooks(round.Hooks{
		OnTransition: e.onTransition,
		OnEliminated: e.onEliminated,
		OnTileDrop:   e.onTileDrop,
	})
	e.round = r
	e.storeView()
	e.logger.Info("engine ready", "systems", len(r.Systems()), "tps", cfg.TicksPerSecond)
	return e, nil
}

// Run steps the engine at the given interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	defer close(e.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			e.Step()
			if took := time.Since(start); took > interval {
				e.logger.Warn("slow tick", "tick", e.round.CurrentTick(), "took_ms", took.Milliseconds())
				if e.metrics != nil {
					e.metrics.IncrSlowTicks()
				}
			}
		}
	}
}

// Step runs one tick: pending commands, the round pipeline, entity cleanup,
// then outbound updates.
func (e *Engine) Step() {
	e.drainInbox()
	e.round.Tick()
	e.ents.Flush()
	e.flushOutbound()
	if e.metrics != nil {
		e.metrics.IncrTicks()
	}
}

// Round exposes the round for inspection from the engine goroutine.
func (e *Engine) Round() *round.Round {
	return e.round
}

// Arena implements server.ArenaSource.
func (e *Engine) Arena() server.ArenaView {
	if v := e.view.Load(); v != nil {
		return *v
	}
	return server.ArenaView{}
}

func (e *Engine) drainInbox() {
	for {
		select {
		case cmd := <-e.Inbox:
			e.handleCommand(cmd)
		default:
			return
		}
	}
}

func (e *Engine) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Join:
		id, ok := e.sessions[c.Session]
		if !ok {
			id = e.ents.Connect(c.Session, c.Name, e.cfg.SpectatorSpawn)
			e.sessions[c.Session] = id
			e.logger.Info("player joined", "player", id, "name", c.Name, "session", c.Session)
		}
		lo, hi := e.cfg.Arena().Bounds()
		e.send(c.Session, MsgWelcome, welcomePayload{
			PlayerID: id,
			Round:    e.round.Snapshot(),
			Blocks:   e.world.Region(lo, hi),
		})
		if c.Reply != nil {
			c.Reply <- JoinResult{PlayerID: id}
		}

	case Move:
		id, ok := e.sessions[c.Session]
		if !ok {
			return
		}
		if !finitePosition(c.Pos) {
			e.logger.Warn("malformed move dropped", "player", id)
			return
		}
		if err := e.ents.SetPosition(id, c.Pos); err != nil {
			e.logger.Debug("apply move", "player", id, "err", err)
		}

	case Leave:
		id, ok := e.sessions[c.Session]
		if !ok {
			return
		}
		delete(e.sessions, c.Session)
		if err := e.ents.Disconnect(id); err != nil {
			e.logger.Debug("disconnect", "player", id, "err", err)
		}
		e.logger.Info("player left", "player", id, "session", c.Session)

	default:
		e.logger.Warn("unknown command", "type", fmt.Sprintf("%T", cmd))
	}
}

// post hands a command to the engine goroutine unless it already stopped.
func (e *Engine) post(ctx context.Context, cmd any) bool {
	select {
	case e.Inbox <- cmd:
		return true
	case <-e.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// HandleMessage implements server.MessageHandler.
func (e *Engine) HandleMessage(ctx context.Context, client *server.Client, msg server.WSMessage) {
	switch msg.Type {
	case MsgJoin:
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		if e.profiles != nil && payload.Name != "" {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if _, err := e.profiles.Upsert(pctx, payload.Name); err != nil {
				e.logger.Warn("upsert profile", "name", payload.Name, "err", err)
			}
			cancel()
			e.namesMu.Lock()
			e.names[client.ID] = payload.Name
			e.namesMu.Unlock()
		}
		reply := make(chan JoinResult, 1)
		if !e.post(ctx, Join{Session: client.ID, Name: payload.Name, Reply: reply}) {
			return
		}
		select {
		case <-reply:
		case <-ctx.Done():
		}

	case MsgMove:
		if !e.moves.Allow(client.ID) {
			return
		}
		var pos voxel.Position
		if err := json.Unmarshal(msg.Payload, &pos); err != nil {
			return
		}
		select {
		case e.Inbox <- Move{Session: client.ID, Pos: pos}:
		default:
			e.logger.Warn("move dropped, inbox full", "session", client.ID)
		}
	}
}

// HandleDisconnect implements server.MessageHandler.
func (e *Engine) HandleDisconnect(client *server.Client) {
	e.moves.Reset(client.ID)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !e.post(ctx, Leave{Session: client.ID}) {
		e.logger.Warn("leave not delivered", "session", client.ID)
	}

	e.namesMu.Lock()
	name, ok := e.names[client.ID]
	delete(e.names, client.ID)
	e.namesMu.Unlock()
	if ok && e.profiles != nil {
		if err := e.profiles.Touch(ctx, name); err != nil {
			e.logger.Warn("touch profile", "name", name, "err", err)
		}
	}
}

// SendTitle implements round.Notifier.
func (e *Engine) SendTitle(id round.EntityID, t round.Title) {
	p, ok := e.ents.Lookup(id)
	if !ok {
		return
	}
	e.send(p.Session, MsgTitle, t)
}

func (e *Engine) onTransition(from, to round.State) {
	snap := e.round.Snapshot()
	e.broadcast(MsgRoundState, snap)
	if e.pub != nil {
		e.pub.Event("transition", map[string]string{"from": from.Name(), "to": to.Name()})
		e.pub.State(snap)
	}
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(from, to)
	}
	if e.metrics == nil {
		return
	}
	switch to.(type) {
	case *round.Playing:
		e.metrics.IncrRoundsStarted()
	case round.Waiting:
		if p, ok := from.(*round.Playing); ok {
			if p.Roster.Len() == 1 {
				e.metrics.IncrRoundsWon()
			} else {
				e.metrics.IncrRoundsDrawn()
			}
		}
	}
}

func (e *Engine) onEliminated(id round.EntityID) {
	remaining := 0
	if p, ok := e.round.State().(*round.Playing); ok {
		remaining = p.Roster.Len()
	}
	payload := eliminatedPayload{PlayerID: id, Remaining: remaining}
	e.broadcast(MsgEliminated, payload)
	if e.pub != nil {
		e.pub.Event(MsgEliminated, payload)
	}
	if e.metrics != nil {
		e.metrics.IncrEliminations()
	}
	if e.hooks.OnEliminated != nil {
		e.hooks.OnEliminated(id)
	}
}

func (e *Engine) onTileDrop(pos voxel.BlockPos) {
	if e.metrics != nil {
		e.metrics.IncrTilesDropped()
	}
	if e.hooks.OnTileDrop != nil {
		e.hooks.OnTileDrop(pos)
	}
}

func (e *Engine) flushOutbound() {
	if changes := e.world.DrainChanges(); len(changes) > 0 {
		e.broadcast(MsgBlocks, changes)
	}
	for _, p := range e.ents.DrainMoved() {
		e.send(p.Session, MsgTeleport, p)
	}

	tick := e.round.CurrentTick()
	if tick%e.broadcastEvery == 0 {
		e.broadcast(MsgEntities, entitiesPayload{
			Tick:    tick,
			Players: e.ents.Players(),
			Falling: e.ents.FallingBlocks(),
		})
	}

	e.storeView()
	if e.pub != nil && tick%e.cfg.TicksPerSecond == 0 {
		v := e.view.Load()
		e.pub.State(v.Round)
		byID := make(map[uint64]any, len(v.Players))
		for _, p := range v.Players {
			byID[uint64(p.ID)] = p
		}
		e.pub.Players(byID)
	}
}

func (e *Engine) storeView() {
	e.view.Store(&server.ArenaView{
		Round:   e.round.Snapshot(),
		Players: e.ents.Players(),
		Chunks:  e.world.LoadedChunks(),
	})
}

func (e *Engine) send(session, typ string, payload any) {
	if e.out == nil {
		return
	}
	msg, err := server.NewMessage(typ, payload)
	if err != nil {
		e.logger.Error("encode message", "type", typ, "err", err)
		return
	}
	e.out.SendTo(session, msg)
}

func (e *Engine) broadcast(typ string, payload any) {
	if e.out == nil {
		return
	}
	msg, err := server.NewMessage(typ, payload)
	if err != nil {
		e.logger.Error("encode message", "type", typ, "err", err)
		return
	}
	e.out.Broadcast(msg)
}
