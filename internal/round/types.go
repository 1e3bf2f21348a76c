package round

import (
	"fmt"

	"github.com/lastclick/tntrun/internal/voxel"
)

type EntityID uint64

type Gamemode uint8

const (
	Survival Gamemode = iota
	Adventure
	Spectator
)

func (g Gamemode) String() string {
	switch g {
	case Survival:
		return "survival"
	case Adventure:
		return "adventure"
	case Spectator:
		return "spectator"
	default:
		return "unknown"
	}
}

type Color string

const (
	White  Color = "white"
	Red    Color = "red"
	Green  Color = "green"
	Yellow Color = "yellow"
)

// Title is an on-screen cue. Fade and stay timings are in ticks.
type Title struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Color    Color  `json:"color,omitempty"`
	FadeIn   int    `json:"fade_in"`
	Stay     int    `json:"stay"`
	FadeOut  int    `json:"fade_out"`
}

// Player is a connected player as seen by the round.
type Player struct {
	ID      EntityID
	Name    string
	Pos     voxel.Position
	Removed bool // marked for removal by the host this tick
}

func (p Player) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("Player %d", p.ID)
}
