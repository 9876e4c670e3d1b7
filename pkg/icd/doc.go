// Package icd implements the binary wire codec for the CARTA interface
// control document (ICD).
//
// Every message on the wire is an 8-byte little-endian header followed by
// an opaque payload:
//
//	┌──────────────┬──────────────┬──────────────────────┐
//	│ Message Type │ ICD Version  │ Request ID           │
//	│ (2 bytes LE) │ (2 bytes LE) │ (4 bytes LE)         │
//	└──────────────┴──────────────┴──────────────────────┘
//	│ Payload (variable length)                          │
//	└────────────────────────────────────────────────────┘
//
// # Design Goals
//
//   - Fast encoding/decoding: no reflection, direct byte manipulation
//   - Forward compatible: unknown type codes decode successfully and are
//     left to the dispatch layer to ignore
//   - Strict on malformed input: a buffer shorter than the header fails
//     with ErrMalformedHeader
//
// # Payload Encoding
//
// Payload bodies use a compact binary encoding built from varints,
// length-prefixed byte strings, and little-endian fixed-width values. The
// Encoder and Decoder types implement it; the typed messages in this
// package (RegisterViewer, OpenFile, SetImageView, SetRegion, their acks,
// RasterTileData, and the histogram/profile responses) layer on top.
//
// # Correlation
//
// Responses are correlated by message type, not request ID. Concurrent
// requests of the same type can therefore have their responses
// misattributed; callers that care must serialize same-type requests.
//
// # File Structure
//
//   - message.go: message type codes and header codec
//   - encoder.go: binary payload encoder
//   - decoder.go: binary payload decoder
//   - payload.go: typed payload structs and their codecs
package icd
