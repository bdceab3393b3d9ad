// Package frame holds the fixed-size bitmap that camera frames are captured into
// and annotated results are painted onto.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultQuality is the JPEG quality used for uploads (0.8 of maximum).
const DefaultQuality = 80

var (
	// ErrNotSized is returned when the surface is used before Resize.
	ErrNotSized = errors.New("surface has no size")
	// ErrAlreadySized is returned when Resize is called a second time.
	ErrAlreadySized = errors.New("surface size is fixed")
	// ErrDecode is returned when a received image cannot be decoded.
	ErrDecode = errors.New("failed to decode image")
	// ErrEncode is returned when the surface cannot be serialized.
	ErrEncode = errors.New("failed to encode image")
)

// Source is anything that can hand over its latest frame.
type Source interface {
	Read() (image.Image, error)
}

// Surface is the shared bitmap. It is sized once and never resized.
type Surface struct {
	mu  sync.RWMutex
	img *image.RGBA
}

// NewSurface returns an unsized surface.
func NewSurface() *Surface {
	return &Surface{}
}

// Resize fixes the surface dimensions. It only succeeds once.
func (s *Surface) Resize(size image.Point) error {
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("invalid surface size %v", size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img != nil {
		if s.img.Bounds().Size() == size {
			return nil
		}
		return fmt.Errorf("%w: have %v, asked for %v", ErrAlreadySized, s.img.Bounds().Size(), size)
	}
	s.img = image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	return nil
}

// Size returns the surface dimensions, or the zero point before Resize.
func (s *Surface) Size() image.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.img == nil {
		return image.Point{}
	}
	return s.img.Bounds().Size()
}

// Capture draws the source's current frame onto the surface, scaling it to fit.
func (s *Surface) Capture(src Source) error {
	img, err := src.Read()
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return s.Draw(img)
}

// Draw scales img over the whole surface.
func (s *Surface) Draw(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return ErrNotSized
	}
	draw.ApproxBiLinear.Scale(s.img, s.img.Bounds(), img, img.Bounds(), draw.Src, nil)
	return nil
}

// Encode serializes the surface as JPEG with the given quality.
func (s *Surface) Encode(quality int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.img == nil {
		return nil, ErrNotSized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, s.img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// Paint decodes data and draws it over the whole surface. On failure the
// surface keeps its previous contents.
func (s *Surface) Paint(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return s.Draw(img)
}

// Clear resets every pixel to transparent black.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.img == nil {
		return
	}
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Snapshot returns a copy of the current pixels.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.img == nil {
		return nil
	}
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out
}
