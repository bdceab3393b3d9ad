// Package camera describes a live capture device independent of the driver behind it.
package camera

import (
	"context"
	"errors"
	"image"
)

// ErrDeviceUnavailable is returned when no camera exists or access to it was denied.
var ErrDeviceUnavailable = errors.New("camera device unavailable")

// StreamConfig is the resolution and frame rate requested from the device.
// Drivers treat it as a hint; the negotiated size is reported by Stream.Size.
type StreamConfig struct {
	Width     int
	Height    int
	Framerate int
}

// Device is a camera that can be enumerated and opened.
type Device interface {
	// Available reports whether at least one usable video input exists.
	Available() bool
	// Open requests access to the device and starts capturing.
	Open(ctx context.Context, config StreamConfig) (Stream, error)
}

// Stream is an open capture session. It owns the device's hardware tracks until Stop.
type Stream interface {
	// Size returns the negotiated frame resolution.
	Size() image.Point
	// Read returns the most recent frame.
	Read() (image.Image, error)
	// Stop releases the hardware tracks. Calling it more than once is a no-op.
	Stop() error
}
