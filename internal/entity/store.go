package entity

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"

	"github.com/lastclick/tntrun/internal/round"
	"github.com/lastclick/tntrun/internal/voxel"
)

// PlayerState is a player as reported to clients.
type PlayerState struct {
	ID       round.EntityID `json:"id"`
	Name     string         `json:"name"`
	Session  string         `json:"session"`
	Pos      voxel.Position `json:"pos"`
	Gamemode string         `json:"gamemode"`
}

// FallingState is a falling tile as reported to clients.
type FallingState struct {
	ID    round.EntityID   `json:"id"`
	Pos   voxel.Position   `json:"pos"`
	State voxel.BlockState `json:"state"`
}

var (
	playersQuery = donburi.NewQuery(filter.And(
		filter.Contains(Player),
		filter.Not(filter.Contains(RemoveEvent)),
	))
	joinQuery    = donburi.NewQuery(filter.Contains(Player, JoinEvent))
	removeQuery  = donburi.NewQuery(filter.Contains(RemoveEvent))
	fallingQuery = donburi.NewQuery(filter.Contains(FallingBlock))
)

// Store is the host entity store backed by a donburi world. It implements
// round.Players and round.Entities. It is owned by the tick goroutine and is
// not safe for concurrent use.
type Store struct {
	world  donburi.World
	ids    map[round.EntityID]donburi.Entity
	next   round.EntityID
	seq    uint64
	moved  map[round.EntityID]struct{}
	logger *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		world:  donburi.NewWorld(),
		ids:    make(map[round.EntityID]donburi.Entity),
		next:   1,
		moved:  make(map[round.EntityID]struct{}),
		logger: logger,
	}
}

func (s *Store) create(components ...donburi.IComponentType) (round.EntityID, *donburi.Entry) {
	id := s.next
	s.next++
	e := s.world.Create(components...)
	s.ids[id] = e
	return id, s.world.Entry(e)
}

func (s *Store) entry(id round.EntityID) (*donburi.Entry, error) {
	e, ok := s.ids[id]
	if !ok || !s.world.Valid(e) {
		return nil, fmt.Errorf("entity %d: %w", id, round.ErrEntityNotFound)
	}
	return s.world.Entry(e), nil
}

func (s *Store) playerEntry(id round.EntityID) (*donburi.Entry, error) {
	en, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	if !en.HasComponent(Player) {
		return nil, fmt.Errorf("player %d: %w", id, round.ErrEntityNotFound)
	}
	return en, nil
}

// Connect creates a player for a new session. The round sees it through
// Joined on its next tick.
func (s *Store) Connect(session, name string, pos voxel.Position) round.EntityID {
	id, en := s.create(Player, Name, Position, Gamemode, Session, JoinEvent)
	s.seq++
	Player.SetValue(en, PlayerData{ID: id})
	Name.SetValue(en, name)
	Position.SetValue(en, pos)
	Gamemode.SetValue(en, round.Spectator)
	Session.SetValue(en, session)
	JoinEvent.SetValue(en, EventData{Seq: s.seq})
	s.logger.Debug("player connected", "player", id, "session", session)
	return id
}

// Disconnect marks the player removed. The entity stays visible as Removed
// until Flush so the round can prune it.
func (s *Store) Disconnect(id round.EntityID) error {
	en, err := s.playerEntry(id)
	if err != nil {
		return err
	}
	if en.HasComponent(RemoveEvent) {
		return nil
	}
	s.seq++
	donburi.Add(en, RemoveEvent, &EventData{Seq: s.seq})
	return nil
}

// Flush deletes every entity marked removed.
func (s *Store) Flush() int {
	var gone []round.EntityID
	removeQuery.Each(s.world, func(en *donburi.Entry) {
		gone = append(gone, Player.Get(en).ID)
	})
	for _, id := range gone {
		s.world.Remove(s.ids[id])
		delete(s.ids, id)
		delete(s.moved, id)
	}
	if len(gone) > 0 {
		s.logger.Debug("players removed", "count", len(gone))
	}
	return len(gone)
}

// SetPosition applies a client-reported position.
func (s *Store) SetPosition(id round.EntityID, pos voxel.Position) error {
	en, err := s.playerEntry(id)
	if err != nil {
		return err
	}
	Position.SetValue(en, pos)
	return nil
}

func (s *Store) Joined() []round.EntityID {
	type pending struct {
		id  round.EntityID
		seq uint64
	}
	var ps []pending
	joinQuery.Each(s.world, func(en *donburi.Entry) {
		ps = append(ps, pending{id: Player.Get(en).ID, seq: JoinEvent.Get(en).Seq})
	})
	sort.Slice(ps, func(i, j int) bool { return ps[i].seq < ps[j].seq })

	out := make([]round.EntityID, 0, len(ps))
	for _, p := range ps {
		en := s.world.Entry(s.ids[p.id])
		en.RemoveComponent(JoinEvent)
		if en.HasComponent(RemoveEvent) {
			continue
		}
		out = append(out, p.id)
	}
	return out
}

func (s *Store) Connected() []round.Player {
	var out []round.Player
	playersQuery.Each(s.world, func(en *donburi.Entry) {
		out = append(out, round.Player{
			ID:   Player.Get(en).ID,
			Name: *Name.Get(en),
			Pos:  *Position.Get(en),
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Player(id round.EntityID) (round.Player, error) {
	en, err := s.playerEntry(id)
	if err != nil {
		return round.Player{}, err
	}
	return round.Player{
		ID:      id,
		Name:    *Name.Get(en),
		Pos:     *Position.Get(en),
		Removed: en.HasComponent(RemoveEvent),
	}, nil
}

func (s *Store) Teleport(id round.EntityID, pos voxel.Position) error {
	en, err := s.playerEntry(id)
	if err != nil {
		return err
	}
	Position.SetValue(en, pos)
	s.moved[id] = struct{}{}
	return nil
}

func (s *Store) SetGamemode(id round.EntityID, mode round.Gamemode) error {
	en, err := s.playerEntry(id)
	if err != nil {
		return err
	}
	Gamemode.SetValue(en, mode)
	s.moved[id] = struct{}{}
	return nil
}

func (s *Store) SpawnFallingBlock(pos voxel.Position, state voxel.BlockState) (round.EntityID, error) {
	id, en := s.create(FallingBlock, Position)
	FallingBlock.SetValue(en, FallingBlockData{ID: id, State: state})
	Position.SetValue(en, pos)
	return id, nil
}

func (s *Store) Position(id round.EntityID) (voxel.Position, error) {
	en, err := s.entry(id)
	if err != nil {
		return voxel.Position{}, err
	}
	return *Position.Get(en), nil
}

func (s *Store) Move(id round.EntityID, pos voxel.Position) error {
	en, err := s.entry(id)
	if err != nil {
		return err
	}
	Position.SetValue(en, pos)
	return nil
}

func (s *Store) Despawn(id round.EntityID) error {
	en, err := s.entry(id)
	if err != nil {
		return err
	}
	if en.HasComponent(Player) {
		return fmt.Errorf("despawn player %d: use Disconnect", id)
	}
	s.world.Remove(s.ids[id])
	delete(s.ids, id)
	return nil
}

// Lookup returns a player by id, removed or not.
func (s *Store) Lookup(id round.EntityID) (PlayerState, bool) {
	en, err := s.playerEntry(id)
	if err != nil {
		return PlayerState{}, false
	}
	return playerState(en), true
}

// Players returns every connected player not marked removed.
func (s *Store) Players() []PlayerState {
	var out []PlayerState
	playersQuery.Each(s.world, func(en *donburi.Entry) {
		out = append(out, playerState(en))
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DrainMoved returns the players whose position or gamemode the server
// changed since the last call.
func (s *Store) DrainMoved() []PlayerState {
	var out []PlayerState
	for id := range s.moved {
		if st, ok := s.Lookup(id); ok {
			out = append(out, st)
		}
	}
	clear(s.moved)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) FallingBlocks() []FallingState {
	var out []FallingState
	fallingQuery.Each(s.world, func(en *donburi.Entry) {
		fb := FallingBlock.Get(en)
		out = append(out, FallingState{ID: fb.ID, Pos: *Position.Get(en), State: fb.State})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live entities of any kind.
func (s *Store) Len() int {
	return s.world.Len()
}

func playerState(en *donburi.Entry) PlayerState {
	return PlayerState{
		ID:       Player.Get(en).ID,
		Name:     *Name.Get(en),
		Session:  *Session.Get(en),
		Pos:      *Position.Get(en),
		Gamemode: Gamemode.Get(en).String(),
	}
}
