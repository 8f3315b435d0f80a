// Package webcam captures frames from local cameras through OpenCV.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-inspect/pkg/frame"
	"gocv.io/x/gocv"
)

// Config holds local camera settings.
type Config struct {
	Device    int     // V4L2 / AVFoundation device index
	Width     int     // Requested frame width, 0 keeps the driver default
	Height    int     // Requested frame height, 0 keeps the driver default
	ZoomLevel float64 // Optical/digital zoom hint, 0 or 1 leaves it untouched
	Quality   int     // JPEG quality 1-100
	Warmup    int     // Frames discarded after opening (auto exposure settle)
}

// DefaultConfig returns settings for a typical USB camera.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     1280,
		Height:    720,
		ZoomLevel: 2.0,
		Quality:   frame.DefaultQuality,
		Warmup:    5,
	}
}

// Webcam captures frames from a local camera through OpenCV.
type Webcam struct {
	config  Config
	mu      sync.Mutex
	capture *gocv.VideoCapture
}

// New creates a webcam source. The device is not opened until Open.
func New(cfg Config) *Webcam {
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = frame.DefaultQuality
	}
	return &Webcam{config: cfg}
}

// Open acquires the camera device.
func (w *Webcam) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(w.config.Device)
	if err != nil {
		return fmt.Errorf("webcam: open camera %d: %w", w.config.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("webcam: camera %d not available", w.config.Device)
	}

	if w.config.Width > 0 && w.config.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(w.config.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(w.config.Height))
	}
	// Not every driver exposes zoom; Set is a no-op there.
	if w.config.ZoomLevel > 1 {
		capture.Set(gocv.VideoCaptureZoom, w.config.ZoomLevel)
	}

	mat := gocv.NewMat()
	defer mat.Close()
	for i := 0; i < w.config.Warmup; i++ {
		if ctx.Err() != nil {
			capture.Close()
			return ctx.Err()
		}
		capture.Read(&mat)
	}

	w.capture = capture
	return nil
}

// Capture grabs the current frame and encodes it as JPEG.
func (w *Webcam) Capture(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil, frame.ErrClosed
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := w.capture.Read(&mat); !ok {
		return nil, errors.New("webcam: camera read failed")
	}
	if mat.Empty() {
		return nil, frame.ErrEmpty
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, w.config.Quality})
	if err != nil {
		return nil, fmt.Errorf("webcam: encode jpeg: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, so copy out.
	data := append([]byte(nil), buf.GetBytes()...)

	return &frame.Frame{
		JPEG:       data,
		Width:      mat.Cols(),
		Height:     mat.Rows(),
		CapturedAt: time.Now(),
	}, nil
}

// Close releases the camera device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil
	}
	err := w.capture.Close()
	w.capture = nil
	return err
}

// Verify Webcam implements Source at compile time.
var _ frame.Source = (*Webcam)(nil)
