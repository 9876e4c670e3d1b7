// Package raster holds the tile store and the image compositor for the
// streaming viewer.
//
// Tiles arrive as opaque byte payloads. The encoding is sniffed from the
// leading magic bytes (JPEG, PNG, or raw RGBA), decoded through a Decoder
// capability, and composited into a viewport-sized pixel buffer with
// nearest-neighbor placement. A per-pixel color pipeline (color scale,
// brightness/contrast, named color table) runs after composition, and a
// non-destructive overlay pass strokes region previews on top.
//
// A single tile failing to decode degrades that tile only; compositing
// always proceeds with the remaining tiles.
package raster
