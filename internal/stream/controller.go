// Package stream runs the continuous capture → encode → infer → render loop
// for a live camera.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"yoloview/internal/camera"
	"yoloview/internal/config"
	"yoloview/internal/dto"
	"yoloview/internal/frame"
	"yoloview/internal/logger"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
)

var (
	// ErrAlreadyRunning is returned by Start when a session is not idle.
	ErrAlreadyRunning = errors.New("camera session already running")
	// ErrStartCancelled is returned by Start when Stop won while the device was opening.
	ErrStartCancelled = errors.New("camera start cancelled")
)

// errCancelled ends an iteration whose run was stopped while it was working.
var errCancelled = errors.New("run cancelled")

// Inferer sends one encoded frame to the detection backend.
type Inferer interface {
	ProcessFrame(ctx context.Context, jpeg []byte) ([]byte, error)
}

// Publisher shows rendered frames and state changes to the user.
// Implementations must not block.
type Publisher interface {
	PublishFrame(jpeg []byte)
	PublishState(state dto.SessionState)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for pacing.
func WithClock(c clock.Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

// WithSurface makes the controller render into s.
func WithSurface(s *frame.Surface) Option {
	return func(ctrl *Controller) { ctrl.surface = s }
}

// Controller owns the camera stream and the surface for the lifetime of a session.
type Controller struct {
	device    camera.Device
	inferer   Inferer
	publisher Publisher
	surface   *frame.Surface
	clock     clock.Clock
	logger    *logger.Logger

	streamConfig  camera.StreamConfig
	frameInterval time.Duration
	errorBackoff  time.Duration
	quality       int

	cameraAvailable bool

	mu    sync.Mutex
	state State
	run   *run
	stats dto.StreamStats

	wg sync.WaitGroup
}

// run is one Start..Stop cycle. cancelled is guarded by Controller.mu.
type run struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stream    camera.Stream
	cancelled bool

	release    sync.Once
	releaseErr error
}

// releaseTracks stops the camera stream exactly once.
func (r *run) releaseTracks() error {
	r.release.Do(func() {
		r.releaseErr = r.stream.Stop()
	})
	return r.releaseErr
}

// NewController enumerates the device once and returns an idle controller.
func NewController(config *config.Config, device camera.Device, inferer Inferer, publisher Publisher, logger *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		device:    device,
		inferer:   inferer,
		publisher: publisher,
		surface:   frame.NewSurface(),
		clock:     clock.New(),
		logger:    logger,
		streamConfig: camera.StreamConfig{
			Width:     config.FrameWidth,
			Height:    config.FrameHeight,
			Framerate: config.CaptureFPS,
		},
		frameInterval: max(config.FrameInterval, 200*time.Millisecond),
		errorBackoff:  max(config.ErrorBackoff, time.Second),
		quality:       config.JPEGQuality,
		state:         Idle,
	}
	if c.quality <= 0 {
		c.quality = frame.DefaultQuality
	}
	for _, opt := range opts {
		opt(c)
	}

	c.cameraAvailable = device.Available()
	if !c.cameraAvailable {
		c.logger.Warning("No camera detected - streaming disabled")
	}
	return c
}

// Surface returns the bitmap the controller renders into.
func (c *Controller) Surface() *frame.Surface {
	return c.surface
}

// Session returns the current session state.
func (c *Controller) Session() dto.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked()
}

// Stats returns a copy of the loop counters.
func (c *Controller) Stats() dto.StreamStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) sessionLocked() dto.SessionState {
	active := c.state == Streaming || c.state == Backoff
	return dto.SessionState{
		CameraAvailable: c.cameraAvailable,
		Streaming:       active,
		Processing:      active,
		State:           c.state.String(),
	}
}

// setStateLocked moves to s and tells the viewers. c.mu must be held.
func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Info("Camera session %s -> %s", c.state, s)
	c.state = s
	c.publisher.PublishState(c.sessionLocked())
}

// Start opens the camera, sizes the surface and launches the frame loop.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !c.cameraAvailable {
		c.mu.Unlock()
		return camera.ErrDeviceUnavailable
	}
	c.setStateLocked(Starting)
	c.mu.Unlock()

	stream, err := c.device.Open(ctx, c.streamConfig)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.setStateLocked(Idle)
		c.logger.Error("Error opening camera: %v", err)
		return fmt.Errorf("starting camera: %w", err)
	}
	if c.state != Starting {
		// Stop arrived while the device was opening.
		c.setStateLocked(Idle)
		return multierr.Append(ErrStartCancelled, stream.Stop())
	}

	if err := c.surface.Resize(stream.Size()); err != nil {
		if !errors.Is(err, frame.ErrAlreadySized) {
			c.setStateLocked(Idle)
			return multierr.Append(fmt.Errorf("sizing surface: %w", err), stream.Stop())
		}
		c.logger.Warning("Camera negotiated %v, keeping surface at %v", stream.Size(), c.surface.Size())
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{ctx: runCtx, cancel: cancel, stream: stream}
	c.run = r
	c.setStateLocked(Streaming)

	c.wg.Add(1)
	go c.loop(r)
	return nil
}

// Stop ends the session immediately. The in-flight response, if any, is
// discarded when it arrives. The camera tracks are released before Stop returns.
func (c *Controller) Stop() error {
	c.mu.Lock()

	switch c.state {
	case Idle, Stopping:
		c.mu.Unlock()
		return nil
	case Starting:
		// Start finishes the teardown once Open returns.
		c.setStateLocked(Stopping)
		c.mu.Unlock()
		return nil
	}

	r := c.run
	c.setStateLocked(Stopping)
	r.cancelled = true
	r.cancel()
	err := r.releaseTracks()
	c.surface.Clear()
	c.run = nil
	c.setStateLocked(Idle)
	c.mu.Unlock()

	if blank, encErr := c.surface.Encode(c.quality); encErr == nil {
		c.publisher.PublishFrame(blank)
	}
	if err != nil {
		c.logger.Error("Error releasing camera: %v", err)
		return fmt.Errorf("releasing camera: %w", err)
	}
	return nil
}

// Close stops the session and waits for the loop goroutine to exit.
func (c *Controller) Close() error {
	err := c.Stop()
	c.wg.Wait()
	return err
}

func (c *Controller) loop(r *run) {
	defer c.wg.Done()

	for {
		if c.isCancelled(r) {
			return
		}

		delay := c.frameInterval
		if err := c.iterate(r); err != nil {
			if errors.Is(err, errCancelled) {
				return
			}
			c.fail(r, err)
			delay = c.errorBackoff
		}

		if !c.wait(r, delay) {
			return
		}
		c.resume(r)
	}
}

// iterate runs capture, encode, inference and render once.
func (c *Controller) iterate(r *run) error {
	c.mu.Lock()
	c.stats.Iterations++
	if r.cancelled {
		c.mu.Unlock()
		return errCancelled
	}
	// Held across the read so a concurrent Stop cannot clear the surface mid-capture.
	captureErr := c.surface.Capture(r.stream)
	c.mu.Unlock()
	if captureErr != nil {
		return captureErr
	}

	data, err := c.surface.Encode(c.quality)
	if err != nil {
		return err
	}

	annotated, inferErr := c.inferer.ProcessFrame(r.ctx, data)

	c.mu.Lock()
	defer c.mu.Unlock()

	if r.cancelled {
		c.stats.Dropped++
		return errCancelled
	}
	if inferErr != nil {
		return inferErr
	}
	if err := c.surface.Paint(annotated); err != nil {
		return err
	}
	c.stats.Rendered++

	if rendered, err := c.surface.Encode(c.quality); err == nil {
		c.publisher.PublishFrame(rendered)
	}
	return nil
}

// fail records a failed iteration and enters back-off.
func (c *Controller) fail(r *run, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.cancelled {
		return
	}
	c.stats.Failures++
	c.stats.LastError = err.Error()
	c.logger.Warning("Frame processing failed, retrying in %v: %v", c.errorBackoff, err)
	c.setStateLocked(Backoff)
}

// resume leaves back-off once the delay has passed.
func (c *Controller) resume(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !r.cancelled && c.state == Backoff {
		c.setStateLocked(Streaming)
	}
}

// wait sleeps for d on the controller clock. It returns false if the run was stopped.
func (c *Controller) wait(r *run, d time.Duration) bool {
	timer := c.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !c.isCancelled(r)
	case <-r.ctx.Done():
		return false
	}
}

func (c *Controller) isCancelled(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.cancelled
}
