package world

import (
	"errors"
	"testing"

	"github.com/lastclick/tntrun/internal/voxel"
)

func TestCoordOfNegative(t *testing.T) {
	tests := []struct {
		pos  voxel.BlockPos
		want ChunkCoord
	}{
		{voxel.BlockPos{X: 0, Y: 0, Z: 0}, ChunkCoord{0, 0, 0}},
		{voxel.BlockPos{X: 15, Y: 20, Z: -1}, ChunkCoord{0, 1, -1}},
		{voxel.BlockPos{X: -16, Y: -17, Z: 16}, ChunkCoord{-1, -2, 1}},
	}
	for _, tt := range tests {
		if got := CoordOf(tt.pos); got != tt.want {
			t.Errorf("CoordOf(%v) = %+v, want %+v", tt.pos, got, tt.want)
		}
	}
}

func TestIdxDistinctWithinChunk(t *testing.T) {
	seen := make(map[int]bool, N)
	for x := int32(-16); x < 0; x++ {
		for y := int32(0); y < 16; y++ {
			for z := int32(16); z < 32; z++ {
				i := Idx(voxel.BlockPos{X: x, Y: y, Z: z})
				if i < 0 || i >= N {
					t.Fatalf("index %d out of range", i)
				}
				if seen[i] {
					t.Fatalf("duplicate index %d", i)
				}
				seen[i] = true
			}
		}
	}
}

func TestUnloadedChunkFails(t *testing.T) {
	s := NewStore()
	pos := voxel.BlockPos{X: 3, Y: 20, Z: 3}
	if _, err := s.Block(pos); !errors.Is(err, ErrChunkNotLoaded) {
		t.Fatalf("Block on unloaded chunk: got %v", err)
	}
	if err := s.SetBlock(pos, voxel.TNT); !errors.Is(err, ErrChunkNotLoaded) {
		t.Fatalf("SetBlock on unloaded chunk: got %v", err)
	}
}

func TestSetBlockRecordsChanges(t *testing.T) {
	s := NewStore()
	pos := voxel.BlockPos{X: -5, Y: 15, Z: 7}
	s.Load(CoordOf(pos))

	if err := s.SetBlock(pos, voxel.TNT); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}
	if err := s.SetBlock(pos, voxel.TNT); err != nil {
		t.Fatalf("SetBlock again: %v", err)
	}
	got, err := s.Block(pos)
	if err != nil || got != voxel.TNT {
		t.Fatalf("Block = %v, %v", got, err)
	}
	changes := s.DrainChanges()
	if len(changes) != 1 {
		t.Fatalf("expected 1 change for idempotent writes, got %d", len(changes))
	}
	if len(s.DrainChanges()) != 0 {
		t.Fatal("changes should be cleared after drain")
	}
}

func TestRegionLoaded(t *testing.T) {
	s := NewStore()
	min := voxel.BlockPos{X: -15, Y: 10, Z: -15}
	max := voxel.BlockPos{X: 15, Y: 20, Z: 15}
	if s.RegionLoaded(min, max) {
		t.Fatal("empty store reports region loaded")
	}
	s.LoadRegion(min, max)
	if !s.RegionLoaded(min, max) {
		t.Fatal("region should be loaded after LoadRegion")
	}
	s.Unload(ChunkCoord{X: 0, Y: 1, Z: 0})
	if s.RegionLoaded(min, max) {
		t.Fatal("region with an unloaded chunk reports loaded")
	}
}

func TestRegionListsSolidBlocks(t *testing.T) {
	s := NewStore()
	min := voxel.BlockPos{X: -2, Y: 0, Z: -2}
	max := voxel.BlockPos{X: 2, Y: 2, Z: 2}
	s.LoadRegion(min, max)
	_ = s.SetBlock(voxel.BlockPos{X: -1, Y: 1, Z: 1}, voxel.TNT)
	_ = s.SetBlock(voxel.BlockPos{X: 2, Y: 2, Z: 2}, voxel.TNT)
	_ = s.SetBlock(voxel.BlockPos{X: 3, Y: 2, Z: 2}, voxel.TNT)

	got := s.Region(min, max)
	if len(got) != 2 {
		t.Fatalf("Region = %+v", got)
	}
	if got[0].Pos != (voxel.BlockPos{X: -1, Y: 1, Z: 1}) {
		t.Fatalf("unexpected first block %+v", got[0])
	}
}
