package round

import (
	"errors"

	"github.com/lastclick/tntrun/internal/voxel"
)

var (
	ErrEntityNotFound  = errors.New("entity not found")
	ErrRegionNotLoaded = errors.New("arena region not loaded")
)

// Players is the host's view of connected players.
type Players interface {
	// Joined returns players that connected since the previous call.
	Joined() []EntityID
	// Connected returns every live player, spectators included.
	Connected() []Player
	// Player looks up a single player. It returns ErrEntityNotFound once the
	// player disconnected.
	Player(id EntityID) (Player, error)
	Teleport(id EntityID, pos voxel.Position) error
	SetGamemode(id EntityID, mode Gamemode) error
}

// Blocks is world block storage. Writes fail while the target chunk is not
// loaded.
type Blocks interface {
	Block(pos voxel.BlockPos) (voxel.BlockState, error)
	SetBlock(pos voxel.BlockPos, state voxel.BlockState) error
	RegionLoaded(min, max voxel.BlockPos) bool
}

// Entities spawns and moves non-player entities.
type Entities interface {
	SpawnFallingBlock(pos voxel.Position, state voxel.BlockState) (EntityID, error)
	Position(id EntityID) (voxel.Position, error)
	Move(id EntityID, pos voxel.Position) error
	Despawn(id EntityID) error
}

type Notifier interface {
	SendTitle(id EntityID, t Title)
}

type Rand interface {
	Float64() float64
}

// Env bundles the host capabilities a Round runs against.
type Env struct {
	Players  Players
	Blocks   Blocks
	Entities Entities
	Notifier Notifier
	Rand     Rand
}

func (e Env) validate() error {
	switch {
	case e.Players == nil:
		return errors.New("env: players is required")
	case e.Blocks == nil:
		return errors.New("env: blocks is required")
	case e.Entities == nil:
		return errors.New("env: entities is required")
	case e.Notifier == nil:
		return errors.New("env: notifier is required")
	case e.Rand == nil:
		return errors.New("env: rand is required")
	}
	return nil
}
