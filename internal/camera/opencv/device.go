// Package opencv implements camera.Device on top of gocv's VideoCapture.
package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"
	"yoloview/internal/camera"

	"gocv.io/x/gocv"
)

// maxProbe bounds how many device indexes ScanDevices tries.
const maxProbe = 5

// Device opens the capture device with the given index.
type Device struct {
	index int
}

// NewDevice returns a Device for the OpenCV capture index.
func NewDevice(index int) *Device {
	return &Device{index: index}
}

// ScanDevices tries the first few capture indexes and returns the ones that open.
func ScanDevices() []int {
	var found []int
	for i := 0; i < maxProbe; i++ {
		capture, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		if capture.IsOpened() {
			found = append(found, i)
		}
		capture.Close()
	}
	return found
}

// Available reports whether the configured index can be opened.
func (d *Device) Available() bool {
	capture, err := gocv.OpenVideoCapture(d.index)
	if err != nil {
		return false
	}
	defer capture.Close()
	return capture.IsOpened()
}

// Open starts capturing with the requested settings.
func (d *Device) Open(ctx context.Context, config camera.StreamConfig) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(d.index)
	if err != nil {
		return nil, fmt.Errorf("%w: opening device %d: %v", camera.ErrDeviceUnavailable, d.index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: device %d is not open", camera.ErrDeviceUnavailable, d.index)
	}

	if config.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(config.Width))
	}
	if config.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(config.Height))
	}
	if config.Framerate > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(config.Framerate))
	}

	size := image.Pt(
		int(capture.Get(gocv.VideoCaptureFrameWidth)),
		int(capture.Get(gocv.VideoCaptureFrameHeight)),
	)
	if size.X <= 0 || size.Y <= 0 {
		size = image.Pt(config.Width, config.Height)
	}

	return &stream{
		capture: capture,
		mat:     gocv.NewMat(),
		size:    size,
	}, nil
}

type stream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	size    image.Point
	stopped bool
}

func (s *stream) Size() image.Point {
	return s.size
}

func (s *stream) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, fmt.Errorf("read after stop")
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, fmt.Errorf("failed to read frame")
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

func (s *stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	s.mat.Close()
	if err := s.capture.Close(); err != nil {
		return fmt.Errorf("error closing camera: %w", err)
	}
	return nil
}
