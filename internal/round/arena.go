package round

import (
	"fmt"

	"github.com/lastclick/tntrun/internal/voxel"
)

// Arena is a stack of floor discs centered on the origin.
type Arena struct {
	Radius int32
	Layers []int32
	Floor  voxel.BlockState
}

// Bounds returns the box enclosing every floor tile.
func (a Arena) Bounds() (voxel.BlockPos, voxel.BlockPos) {
	lo, hi := a.Layers[0], a.Layers[0]
	for _, y := range a.Layers[1:] {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	return voxel.BlockPos{X: -a.Radius, Y: lo, Z: -a.Radius},
		voxel.BlockPos{X: a.Radius, Y: hi, Z: a.Radius}
}

// Contains reports whether (x, z) lies on the disc.
func (a Arena) Contains(x, z int32) bool {
	r := int64(a.Radius)
	return int64(x)*int64(x)+int64(z)*int64(z) <= r*r
}

// Tiles returns the number of floor blocks a full regeneration writes.
func (a Arena) Tiles() int {
	n := 0
	for x := -a.Radius; x <= a.Radius; x++ {
		for z := -a.Radius; z <= a.Radius; z++ {
			if a.Contains(x, z) {
				n++
			}
		}
	}
	return n * len(a.Layers)
}

// Regenerate overwrites every floor tile. It refuses to start while any
// chunk of the arena is unloaded, and stops at the first failed write.
func (a Arena) Regenerate(blocks Blocks) error {
	lo, hi := a.Bounds()
	if !blocks.RegionLoaded(lo, hi) {
		return fmt.Errorf("regenerate %v..%v: %w", lo, hi, ErrRegionNotLoaded)
	}
	for x := -a.Radius; x <= a.Radius; x++ {
		for z := -a.Radius; z <= a.Radius; z++ {
			if !a.Contains(x, z) {
				continue
			}
			for _, y := range a.Layers {
				pos := voxel.BlockPos{X: x, Y: y, Z: z}
				if err := blocks.SetBlock(pos, a.Floor); err != nil {
					return fmt.Errorf("regenerate: %w", err)
				}
			}
		}
	}
	return nil
}
