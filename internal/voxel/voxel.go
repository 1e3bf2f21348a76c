package voxel

import (
	"fmt"
	"math"
)

// BlockState is a numeric block-state id from the world palette.
type BlockState uint16

const (
	Air BlockState = 0
	TNT BlockState = 1430
)

func (b BlockState) String() string {
	switch b {
	case Air:
		return "air"
	case TNT:
		return "tnt"
	default:
		return fmt.Sprintf("block#%d", uint16(b))
	}
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X, Y, Z int32
}

func (p BlockPos) Down() BlockPos {
	return BlockPos{X: p.X, Y: p.Y - 1, Z: p.Z}
}

// Position returns the entity position at the block's minimum corner.
func (p BlockPos) Position() Position {
	return Position{X: float64(p.X), Y: float64(p.Y), Z: float64(p.Z)}
}

func (p BlockPos) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z)
}

// Position is a continuous entity position with look angles.
type Position struct {
	X, Y, Z    float64
	Pitch, Yaw float32
}

func (p Position) Offset(dx, dy, dz float64) Position {
	p.X += dx
	p.Y += dy
	p.Z += dz
	return p
}

// Block returns the block containing the position. Coordinates floor toward
// negative infinity so -0.3 lands in block -1.
func (p Position) Block() BlockPos {
	return BlockPos{
		X: int32(math.Floor(p.X)),
		Y: int32(math.Floor(p.Y)),
		Z: int32(math.Floor(p.Z)),
	}
}
