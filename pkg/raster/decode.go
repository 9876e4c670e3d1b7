package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

// Decode errors.
var (
	// ErrUnsupportedEncoding is returned for tile bytes whose prefix
	// matches no known encoding and whose length is not a whole RGBA
	// buffer.
	ErrUnsupportedEncoding = errors.New("raster: unsupported tile encoding")

	// ErrDecodeFailure is returned when an image decoder rejects the
	// tile bytes.
	ErrDecodeFailure = errors.New("raster: tile decode failed")
)

// Encoding identifies how tile bytes are compressed.
type Encoding uint8

const (
	EncodingRaw Encoding = iota
	EncodingJPEG
	EncodingPNG
)

// String returns the string representation of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingJPEG:
		return "jpeg"
	case EncodingPNG:
		return "png"
	default:
		return "unknown"
	}
}

// Magic byte prefixes.
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// Sniff determines the tile encoding from the leading magic bytes.
// Anything that is not JPEG or PNG is treated as raw RGBA.
func Sniff(data []byte) Encoding {
	if len(data) >= 3 && bytes.Equal(data[:3], jpegMagic) {
		return EncodingJPEG
	}
	if len(data) >= 4 && bytes.Equal(data[:4], pngMagic) {
		return EncodingPNG
	}
	return EncodingRaw
}

// Decoder turns tile bytes into an RGBA buffer. Implementations may
// suspend (JPEG/PNG decoding round-trips through an image-decode
// primitive), so the contract takes a context; raw passthrough is
// synchronous.
type Decoder interface {
	Decode(ctx context.Context, data []byte, width, height int) (*image.RGBA, error)
}

// StdDecoder decodes tiles with the standard library image codecs.
type StdDecoder struct{}

// Decode sniffs the encoding and decodes data into an RGBA image of the
// declared tile dimensions. Raw data must be exactly width*height*4 bytes.
func (StdDecoder) Decode(ctx context.Context, data []byte, width, height int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch Sniff(data) {
	case EncodingJPEG:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: jpeg: %v", ErrDecodeFailure, err)
		}
		return toRGBA(img), nil

	case EncodingPNG:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: png: %v", ErrDecodeFailure, err)
		}
		return toRGBA(img), nil

	default:
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("%w: raw tile with %dx%d dimensions", ErrUnsupportedEncoding, width, height)
		}
		if len(data) != width*height*4 {
			return nil, fmt.Errorf("%w: raw tile has %d bytes, want %d", ErrUnsupportedEncoding, len(data), width*height*4)
		}
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		copy(img.Pix, data)
		return img, nil
	}
}

// toRGBA converts any decoded image to RGBA. JPEG has no alpha channel,
// so those pixels come out fully opaque.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
