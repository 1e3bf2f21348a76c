package world

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lastclick/tntrun/internal/voxel"
)

var ErrChunkNotLoaded = errors.New("chunk not loaded")

// Change is a block mutation recorded for clients.
type Change struct {
	Pos   voxel.BlockPos   `json:"pos"`
	State voxel.BlockState `json:"state"`
}

// Store is the authoritative block storage. Only loaded chunks can be read or
// written; everything else reports ErrChunkNotLoaded.
type Store struct {
	mu      sync.RWMutex
	chunks  map[ChunkCoord]*Chunk
	changes []Change
}

func NewStore() *Store {
	return &Store{
		chunks: make(map[ChunkCoord]*Chunk, 64),
	}
}

// Load makes the chunk holding pos available. Loading an already loaded
// chunk keeps its contents.
func (s *Store) Load(c ChunkCoord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[c]; !ok {
		s.chunks[c] = NewChunk(c)
	}
}

// Unload drops a chunk and everything in it.
func (s *Store) Unload(c ChunkCoord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, c)
}

// LoadRegion loads every chunk intersecting the box [min, max].
func (s *Store) LoadRegion(min, max voxel.BlockPos) {
	lo, hi := CoordOf(min), CoordOf(max)
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				s.Load(ChunkCoord{X: x, Y: y, Z: z})
			}
		}
	}
}

// RegionLoaded reports whether every chunk intersecting [min, max] is loaded.
func (s *Store) RegionLoaded(min, max voxel.BlockPos) bool {
	lo, hi := CoordOf(min), CoordOf(max)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				if _, ok := s.chunks[ChunkCoord{X: x, Y: y, Z: z}]; !ok {
					return false
				}
			}
		}
	}
	return true
}

func (s *Store) Block(pos voxel.BlockPos) (voxel.BlockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chunks[CoordOf(pos)]
	if !ok {
		return voxel.Air, fmt.Errorf("read %v: %w", pos, ErrChunkNotLoaded)
	}
	return ch.Get(pos), nil
}

func (s *Store) SetBlock(pos voxel.BlockPos, state voxel.BlockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.chunks[CoordOf(pos)]
	if !ok {
		return fmt.Errorf("write %v: %w", pos, ErrChunkNotLoaded)
	}
	if ch.Get(pos) == state {
		return nil
	}
	ch.Set(pos, state)
	s.changes = append(s.changes, Change{Pos: pos, State: state})
	return nil
}

// DrainChanges returns and clears the mutations recorded since the last call.
func (s *Store) DrainChanges() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.changes
	s.changes = nil
	return out
}

// LoadedChunks returns the number of loaded chunks.
func (s *Store) LoadedChunks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Region returns every non-air block inside [min, max] in loaded chunks.
func (s *Store) Region(min, max voxel.BlockPos) []Change {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Change
	for x := min.X; x <= max.X; x++ {
		for y := min.Y; y <= max.Y; y++ {
			for z := min.Z; z <= max.Z; z++ {
				pos := voxel.BlockPos{X: x, Y: y, Z: z}
				ch, ok := s.chunks[CoordOf(pos)]
				if !ok {
					continue
				}
				if st := ch.Get(pos); st != voxel.Air {
					out = append(out, Change{Pos: pos, State: st})
				}
			}
		}
	}
	return out
}
