package raster

import (
	"sort"
	"sync"
)

// Key identifies one tile slot. At most one tile exists per key.
type Key struct {
	X     int
	Y     int
	Layer int
}

// Tile is a rectangular pixel sub-region of one image layer. Data is
// opaque until decoded; the store owns it exclusively until it is replaced
// at the same key or the store is cleared.
type Tile struct {
	X      int
	Y      int
	Layer  int
	Width  int
	Height int
	Data   []byte
}

// Key returns the tile's store key.
func (t *Tile) Key() Key {
	return Key{X: t.X, Y: t.Y, Layer: t.Layer}
}

// Store is the keyed tile collection for one open file. Clearing the
// store bumps a generation counter; composite results started against an
// older generation are stale and must be discarded.
type Store struct {
	mu    sync.Mutex
	tiles map[Key]*Tile
	gen   uint64
}

// NewStore returns an empty tile store at generation zero.
func NewStore() *Store {
	return &Store{tiles: make(map[Key]*Tile)}
}

// Add inserts a tile, replacing any existing tile at the same key.
func (s *Store) Add(t *Tile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[t.Key()] = t
}

// Clear removes all tiles and advances the generation. Called when a new
// file is opened or the view is reset.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles = make(map[Key]*Tile)
	s.gen++
}

// Len returns the number of stored tiles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tiles)
}

// Generation returns the current store generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Values returns a snapshot of the stored tiles in deterministic order
// (layer, then y, then x), so successive composites of the same store
// paint identically.
func (s *Store) Values() []*Tile {
	s.mu.Lock()
	out := make([]*Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		out = append(out, t)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Layer != b.Layer {
			return a.Layer < b.Layer
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}
