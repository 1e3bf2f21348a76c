package entity

import (
	"github.com/yohamta/donburi"

	"github.com/lastclick/tntrun/internal/round"
	"github.com/lastclick/tntrun/internal/voxel"
)

// PlayerData marks an entity as a connected player.
type PlayerData struct {
	ID round.EntityID
}

// FallingBlockData marks an entity as a falling tile.
type FallingBlockData struct {
	ID    round.EntityID
	State voxel.BlockState
}

// EventData orders pending join/remove events by arrival.
type EventData struct {
	Seq uint64
}

var (
	Player       = donburi.NewComponentType[PlayerData]()
	Name         = donburi.NewComponentType[string]()
	Position     = donburi.NewComponentType[voxel.Position]()
	Gamemode     = donburi.NewComponentType[round.Gamemode]()
	Session      = donburi.NewComponentType[string]()
	FallingBlock = donburi.NewComponentType[FallingBlockData]()

	// JoinEvent is present until the round consumed the join.
	JoinEvent = donburi.NewComponentType[EventData]()
	// RemoveEvent is present from disconnect until the next Flush.
	RemoveEvent = donburi.NewComponentType[EventData]()
)
