package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type solidSource struct {
	c   color.Color
	err error
}

func (s solidSource) Read() (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewUniform(s.c), nil
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSurface_ResizeOnlyOnce(t *testing.T) {
	s := NewSurface()
	assert.Equal(t, image.Point{}, s.Size())

	require.NoError(t, s.Resize(image.Pt(64, 48)))
	assert.Equal(t, image.Pt(64, 48), s.Size())

	// Same size is accepted, a different one is not.
	assert.NoError(t, s.Resize(image.Pt(64, 48)))
	err := s.Resize(image.Pt(32, 24))
	assert.True(t, errors.Is(err, ErrAlreadySized))
	assert.Equal(t, image.Pt(64, 48), s.Size())

	assert.Error(t, NewSurface().Resize(image.Pt(0, 10)))
}

func TestSurface_UnsizedOperations(t *testing.T) {
	s := NewSurface()

	_, err := s.Encode(DefaultQuality)
	assert.ErrorIs(t, err, ErrNotSized)
	assert.ErrorIs(t, s.Capture(solidSource{c: color.White}), ErrNotSized)
	assert.ErrorIs(t, s.Paint(solidPNG(t, 4, 4, color.White)), ErrNotSized)
	assert.Nil(t, s.Snapshot())
	s.Clear()
}

func TestSurface_CaptureAndEncode(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Resize(image.Pt(32, 24)))
	require.NoError(t, s.Capture(solidSource{c: color.RGBA{R: 200, G: 10, B: 10, A: 255}}))

	first, err := s.Encode(DefaultQuality)
	require.NoError(t, err)
	second, err := s.Encode(DefaultQuality)
	require.NoError(t, err)
	assert.Equal(t, first, second, "encoding identical pixels must be deterministic")

	decoded, format, err := image.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Pt(32, 24), decoded.Bounds().Size())
}

func TestSurface_CaptureError(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Resize(image.Pt(8, 8)))

	boom := errors.New("device gone")
	assert.ErrorIs(t, s.Capture(solidSource{err: boom}), boom)
}

func TestSurface_PaintScalesToSurface(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Resize(image.Pt(16, 16)))

	// Backend answers with a larger image; the surface keeps its size.
	require.NoError(t, s.Paint(solidPNG(t, 64, 64, color.RGBA{G: 255, A: 255})))

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, image.Pt(16, 16), snap.Bounds().Size())
	px := snap.RGBAAt(8, 8)
	assert.GreaterOrEqual(t, px.G, uint8(250))
	assert.LessOrEqual(t, px.R, uint8(5))
}

func TestSurface_PaintDecodeFailureKeepsPixels(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Resize(image.Pt(4, 4)))
	require.NoError(t, s.Paint(solidPNG(t, 4, 4, color.RGBA{B: 255, A: 255})))
	before := s.Snapshot()

	err := s.Paint([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, before.Pix, s.Snapshot().Pix)
}

func TestSurface_Clear(t *testing.T) {
	s := NewSurface()
	require.NoError(t, s.Resize(image.Pt(4, 4)))
	require.NoError(t, s.Paint(solidPNG(t, 4, 4, color.White)))

	s.Clear()

	for _, b := range s.Snapshot().Pix {
		if b != 0 {
			t.Fatalf("expected cleared surface, found byte %d", b)
		}
	}
}
