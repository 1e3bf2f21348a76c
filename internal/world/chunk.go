package world

import "github.com/lastclick/tntrun/internal/voxel"

// 16^3 sections, indexed as x | z<<4 | y<<8.
const (
	ChunkSize = 16

	shift  = 4
	shiftY = 8
	mask4  = ChunkSize - 1

	N = ChunkSize * ChunkSize * ChunkSize
)

type ChunkCoord struct{ X, Y, Z int32 }

// Chunk stores the block states of one 16^3 section. Zero value is all air.
type Chunk struct {
	C      ChunkCoord
	States [N]voxel.BlockState
}

func NewChunk(c ChunkCoord) *Chunk {
	return &Chunk{C: c}
}

// CoordOf returns the chunk holding pos. Arithmetic shift floors negatives.
func CoordOf(pos voxel.BlockPos) ChunkCoord {
	return ChunkCoord{X: pos.X >> shift, Y: pos.Y >> shift, Z: pos.Z >> shift}
}

// Idx returns the linear index of pos inside its chunk.
func Idx(pos voxel.BlockPos) int {
	x := int(pos.X) & mask4
	y := int(pos.Y) & mask4
	z := int(pos.Z) & mask4
	return x | z<<shift | y<<shiftY
}

func (c *Chunk) Get(pos voxel.BlockPos) voxel.BlockState {
	return c.States[Idx(pos)]
}

func (c *Chunk) Set(pos voxel.BlockPos, s voxel.BlockState) {
	c.States[Idx(pos)] = s
}

// Count returns the number of non-air blocks in the chunk.
func (c *Chunk) Count() int {
	n := 0
	for _, s := range c.States {
		if s != voxel.Air {
			n++
		}
	}
	return n
}
