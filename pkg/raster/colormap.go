package raster

import "sync"

// Palette is a 256-entry RGB lookup table.
type Palette [256][3]uint8

// anchor is one control point of a color table, at position t in [0,1].
type anchor struct {
	t       float64
	r, g, b uint8
}

// Color table control points. Full tables are interpolated linearly
// between anchors on first use and cached.
var colorTables = map[string][]anchor{
	"gray": {
		{0, 0, 0, 0},
		{1, 255, 255, 255},
	},
	"viridis": {
		{0.0, 68, 1, 84},
		{0.25, 59, 82, 139},
		{0.5, 33, 145, 140},
		{0.75, 94, 201, 98},
		{1.0, 253, 231, 37},
	},
	"inferno": {
		{0.0, 0, 0, 4},
		{0.25, 87, 16, 110},
		{0.5, 188, 55, 84},
		{0.75, 249, 142, 9},
		{1.0, 252, 255, 164},
	},
	"plasma": {
		{0.0, 13, 8, 135},
		{0.25, 126, 3, 168},
		{0.5, 204, 71, 120},
		{0.75, 248, 149, 64},
		{1.0, 240, 249, 33},
	},
	"rainbow": {
		{0.0, 0, 0, 255},
		{0.25, 0, 255, 255},
		{0.5, 0, 255, 0},
		{0.75, 255, 255, 0},
		{1.0, 255, 0, 0},
	},
}

// DefaultColorMap is used when render options name no table, or name one
// that does not exist.
const DefaultColorMap = "gray"

// buildPalette interpolates the 256-entry table for a named color map.
func buildPalette(name string) *Palette {
	anchors, ok := colorTables[name]
	if !ok {
		anchors = colorTables[DefaultColorMap]
	}
	var p Palette
	for i := 0; i < 256; i++ {
		t := float64(i) / 255
		// Find the surrounding anchor pair.
		j := 0
		for j < len(anchors)-2 && anchors[j+1].t < t {
			j++
		}
		lo, hi := anchors[j], anchors[j+1]
		f := 0.0
		if hi.t > lo.t {
			f = (t - lo.t) / (hi.t - lo.t)
		}
		if f < 0 {
			f = 0
		} else if f > 1 {
			f = 1
		}
		p[i][0] = uint8(float64(lo.r) + f*(float64(hi.r)-float64(lo.r)) + 0.5)
		p[i][1] = uint8(float64(lo.g) + f*(float64(hi.g)-float64(lo.g)) + 0.5)
		p[i][2] = uint8(float64(lo.b) + f*(float64(hi.b)-float64(lo.b)) + 0.5)
	}
	return &p
}

// paletteCache is an explicit bounded cache of built palettes, owned by a
// Compositor and passed by reference. Eviction is whole-cache reset once
// the bound is hit; the working set is a handful of named tables, so
// anything fancier buys nothing.
type paletteCache struct {
	mu    sync.Mutex
	max   int
	built map[string]*Palette
}

func newPaletteCache(max int) *paletteCache {
	if max <= 0 {
		max = 8
	}
	return &paletteCache{max: max, built: make(map[string]*Palette)}
}

// get returns the palette for name, building and caching it on first use.
func (c *paletteCache) get(name string) *Palette {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.built[name]; ok {
		return p
	}
	if len(c.built) >= c.max {
		c.built = make(map[string]*Palette)
	}
	p := buildPalette(name)
	c.built[name] = p
	return p
}
