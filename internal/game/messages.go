package game

import (
	"github.com/lastclick/tntrun/internal/entity"
	"github.com/lastclick/tntrun/internal/round"
	"github.com/lastclick/tntrun/internal/voxel"
	"github.com/lastclick/tntrun/internal/world"
)

// Join is issued once per session after the client said hello.
type Join struct {
	Session string
	Name    string
	Reply   chan<- JoinResult
}

type JoinResult struct {
	PlayerID round.EntityID
}

// Move carries the latest client-reported position.
type Move struct {
	Session string
	Pos     voxel.Position
}

// Leave is issued on disconnect.
type Leave struct {
	Session string
}

// Outbound message types.
const (
	MsgWelcome    = "welcome"
	MsgRoundState = "round_state"
	MsgTitle      = "title"
	MsgBlocks     = "blocks"
	MsgEntities   = "entities"
	MsgTeleport   = "teleport"
	MsgEliminated = "eliminated"
)

// Inbound message types.
const (
	MsgJoin = "join"
	MsgMove = "move"
)

type welcomePayload struct {
	PlayerID round.EntityID `json:"player_id"`
	Round    round.Snapshot `json:"round"`
	Blocks   []world.Change `json:"blocks"`
}

type entitiesPayload struct {
	Tick    uint64                `json:"tick"`
	Players []entity.PlayerState  `json:"players"`
	Falling []entity.FallingState `json:"falling"`
}

type eliminatedPayload struct {
	PlayerID  round.EntityID `json:"player_id"`
	Remaining int            `json:"remaining"`
}
