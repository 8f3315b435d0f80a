// Package frame supplies still frames from live image sources.
//
// A Source is opened once when scanning starts, asked for frames on demand,
// and closed when scanning stops. Implementations cover local webcams (gocv),
// HTTP snapshot endpoints, external capture commands and directories of
// JPEG files.
package frame

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Sentinel errors for common conditions.
var (
	// ErrClosed is returned when capturing from a source that is not open.
	ErrClosed = errors.New("frame: source not open")

	// ErrEmpty is returned when a source produced no image data.
	ErrEmpty = errors.New("frame: empty frame")
)

// Source supplies still frames on demand.
type Source interface {
	// Open acquires the underlying device or endpoint.
	Open(ctx context.Context) error

	// Capture returns the current frame.
	Capture(ctx context.Context) (*Frame, error)

	// Close releases the device. Capture after Close returns ErrClosed.
	Close() error
}

// Frame is a single JPEG-encoded still.
type Frame struct {
	// JPEG holds the encoded image.
	JPEG []byte

	// Width and Height are the pixel dimensions, 0 if unknown.
	Width  int
	Height int

	// CapturedAt is when the frame was taken.
	CapturedAt time.Time
}

// NewFrame wraps JPEG bytes, reading the dimensions from the header.
func NewFrame(data []byte, at time.Time) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("frame: decode jpeg header: %w", err)
	}
	return &Frame{
		JPEG:       data,
		Width:      cfg.Width,
		Height:     cfg.Height,
		CapturedAt: at,
	}, nil
}

// FromImage encodes img as a JPEG frame.
func FromImage(img image.Image, quality int, at time.Time) (*Frame, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("frame: encode jpeg: %w", err)
	}
	b := img.Bounds()
	return &Frame{
		JPEG:       buf.Bytes(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: at,
	}, nil
}

// DefaultQuality is the JPEG quality used when encoding raw images.
const DefaultQuality = 85

// Image decodes the frame.
func (f *Frame) Image() (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(f.JPEG))
}

// Base64 returns the standard base64 encoding of the JPEG bytes.
func (f *Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.JPEG)
}

// Size returns the encoded size in bytes.
func (f *Frame) Size() int {
	return len(f.JPEG)
}
