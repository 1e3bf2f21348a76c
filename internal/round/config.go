package round

import (
	"fmt"

	"github.com/lastclick/tntrun/internal/voxel"
)

// MaxTicksPerSecond bounds the tick rate so a tick is at least one
// millisecond long.
const MaxTicksPerSecond = 1000

// Config holds the round tuning. Countdowns are in seconds, everything else
// timing related is in ticks.
type Config struct {
	TicksPerSecond  uint64
	PreparationTime int
	ResultsTime     int

	FallDelay uint64  // ticks between standing on a tile and it dropping
	FallStep  float64 // height lost per tick by a falling block
	DespawnY  float64
	LoseY     float64

	PlayerWidth    float64
	SpawnCenter    voxel.Position
	SpawnRadius    float64
	SpectatorSpawn voxel.Position

	LayerRadius int32
	Layers      []int32
	Floor       voxel.BlockState
}

func DefaultConfig() Config {
	return Config{
		TicksPerSecond:  20,
		PreparationTime: 5,
		ResultsTime:     5,
		FallDelay:       5,
		FallStep:        0.01,
		DespawnY:        0,
		LoseY:           5,
		PlayerWidth:     0.6,
		SpawnCenter:     voxel.Position{X: 0, Y: 22, Z: 0},
		SpawnRadius:     10,
		SpectatorSpawn:  voxel.Position{X: 0, Y: 27, Z: 0, Yaw: 90},
		LayerRadius:     15,
		Layers:          []int32{20, 15, 10},
		Floor:           voxel.TNT,
	}
}

func (c Config) Validate() error {
	if c.TicksPerSecond == 0 || c.TicksPerSecond > MaxTicksPerSecond {
		return fmt.Errorf("ticks per second must be in [1, %d], got %d", MaxTicksPerSecond, c.TicksPerSecond)
	}
	if c.PreparationTime <= 0 {
		return fmt.Errorf("preparation time must be positive, got %d", c.PreparationTime)
	}
	if c.ResultsTime < 0 {
		return fmt.Errorf("results time must not be negative, got %d", c.ResultsTime)
	}
	if c.FallStep <= 0 {
		return fmt.Errorf("fall step must be positive, got %v", c.FallStep)
	}
	if c.PlayerWidth <= 0 {
		return fmt.Errorf("player width must be positive, got %v", c.PlayerWidth)
	}
	if c.SpawnRadius < 0 || c.LayerRadius < 0 {
		return fmt.Errorf("radii must not be negative")
	}
	if len(c.Layers) == 0 {
		return fmt.Errorf("arena needs at least one layer")
	}
	if c.Floor == voxel.Air {
		return fmt.Errorf("floor block must not be air")
	}
	return nil
}

// Arena returns the floor layout described by the config.
func (c Config) Arena() Arena {
	return Arena{Radius: c.LayerRadius, Layers: c.Layers, Floor: c.Floor}
}
