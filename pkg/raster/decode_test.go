package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Encoding
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, EncodingJPEG},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, EncodingPNG},
		{"raw", []byte{0x01, 0x02, 0x03, 0x04}, EncodingRaw},
		{"empty", nil, EncodingRaw},
		{"jpeg_prefix_too_short", []byte{0xFF, 0xD8}, EncodingRaw},
		{"png_prefix_wrong", []byte{0x89, 0x50, 0x4E, 0x48}, EncodingRaw},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sniff(tc.data); got != tc.want {
				t.Errorf("Sniff() = %v, want %v", got, tc.want)
			}
		})
	}
}

// rawTile builds a width*height raw RGBA tile with every pixel set to
// (r, r, r, 255).
func rawTile(width, height int, r uint8) []byte {
	data := make([]byte, width*height*4)
	for i := 0; i < len(data); i += 4 {
		data[i] = r
		data[i+1] = r
		data[i+2] = r
		data[i+3] = 255
	}
	return data
}

func TestStdDecoderRaw(t *testing.T) {
	img, err := StdDecoder{}.Decode(context.Background(), rawTile(2, 2, 100), 2, 2)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if img.Pix[0] != 100 || img.Pix[3] != 255 {
		t.Errorf("pixel = %v", img.Pix[:4])
	}
}

func TestStdDecoderRawWrongLength(t *testing.T) {
	_, err := StdDecoder{}.Decode(context.Background(), []byte{1, 2, 3}, 2, 2)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("Decode() error = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestStdDecoderPNG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	if got := Sniff(buf.Bytes()); got != EncodingPNG {
		t.Fatalf("Sniff() = %v, want png", got)
	}
	img, err := StdDecoder{}.Decode(context.Background(), buf.Bytes(), 3, 3)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Pix[0] != 200 {
		t.Errorf("pixel = %v", img.Pix[:4])
	}
}

func TestStdDecoderJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatal(err)
	}

	if got := Sniff(buf.Bytes()); got != EncodingJPEG {
		t.Fatalf("Sniff() = %v, want jpeg", got)
	}
	img, err := StdDecoder{}.Decode(context.Background(), buf.Bytes(), 8, 8)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	// JPEG is lossy; a solid white block stays close to white.
	if img.Pix[0] < 240 {
		t.Errorf("pixel R = %d, want near 255", img.Pix[0])
	}
	if img.Pix[3] != 255 {
		t.Errorf("alpha = %d, want opaque", img.Pix[3])
	}
}

func TestStdDecoderCorruptPNG(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := StdDecoder{}.Decode(context.Background(), data, 2, 2)
	if !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("Decode() error = %v, want ErrDecodeFailure", err)
	}
}
