// Package recording owns the capture device and elapsed-time ticker for one
// answer recording at a time.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/prepcoach/internal/fsm"
)

var (
	// ErrDeviceUnavailable wraps any failure to acquire the capture device.
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")
	// ErrAlreadyRecording is returned by Start while a recording is active
	// or a device is still being opened.
	ErrAlreadyRecording = errors.New("a recording is already active")
	// ErrStartAborted is returned when Reset lands while the device opens.
	ErrStartAborted = errors.New("recording start aborted by reset")
)

// Device is an acquired capture handle. Finish stops capture, releases the
// handle, and returns the encoded audio captured so far.
type Device interface {
	Name() string
	Finish() ([]byte, error)
}

// DeviceOpener acquires a capture device.
type DeviceOpener interface {
	Open(context.Context) (Device, error)
}

// OpenerFunc adapts a function to DeviceOpener.
type OpenerFunc func(context.Context) (Device, error)

func (f OpenerFunc) Open(ctx context.Context) (Device, error) { return f(ctx) }

// Ticker is the elapsed-time source. *time.Ticker satisfies it through
// NewTimeTicker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Observer receives capture lifecycle cues.
type Observer interface {
	RecordingStarted(context.Context)
	RecordingStopped(context.Context)
	RecordingFailed(context.Context, string)
}

type noopObserver struct{}

func (noopObserver) RecordingStarted(context.Context)        {}
func (noopObserver) RecordingStopped(context.Context)        {}
func (noopObserver) RecordingFailed(context.Context, string) {}

// Recording is a value snapshot of the controller. Audio is a private copy.
type Recording struct {
	State   fsm.State
	Elapsed int
	Audio   []byte
	Device  string
}

// Stopped reports whether the snapshot holds a finalized capture.
func (r Recording) Stopped() bool {
	return r.State == fsm.StateStopped
}

// Option customizes a Controller.
type Option func(*Controller)

// WithTicker replaces the one-second ticker factory.
func WithTicker(factory func(time.Duration) Ticker) Option {
	return func(c *Controller) { c.newTicker = factory }
}

// WithObserver wires capture cues.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// active is the scoped resource pair held while recording.
type active struct {
	device Device
	ticker Ticker
	done   chan struct{}
}

// Controller is the capture state machine.
type Controller struct {
	opener    DeviceOpener
	newTicker func(time.Duration) Ticker
	observer  Observer
	logger    *slog.Logger

	mu      sync.Mutex
	state   fsm.State
	elapsed int
	audio   []byte
	device  string
	current *active
	opening bool
	resets  uint64
}

// New builds a Controller in the idle state.
func New(opener DeviceOpener, opts ...Option) *Controller {
	c := &Controller{
		opener:    opener,
		newTicker: NewTimeTicker,
		observer:  noopObserver{},
		state:     fsm.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current capture state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the current recording by value.
func (c *Controller) Snapshot() Recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Recording {
	out := Recording{State: c.state, Elapsed: c.elapsed, Device: c.device}
	if len(c.audio) > 0 {
		out.Audio = append([]byte(nil), c.audio...)
	}
	return out
}

// Start acquires the device and ticker. On failure the state is unchanged and
// nothing stays acquired. A previously stopped buffer is discarded only once
// the new device is open. The device opens without holding the lock, so
// Snapshot and State stay responsive on a slow source.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == fsm.StateRecording || c.opening {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	if _, err := fsm.Recording(c.state, fsm.EventStart); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.opener == nil {
		c.mu.Unlock()
		c.observer.RecordingFailed(ctx, "No microphone configured")
		return fmt.Errorf("%w: no device opener configured", ErrDeviceUnavailable)
	}
	c.opening = true
	resets := c.resets
	c.mu.Unlock()

	device, err := c.opener.Open(ctx)

	c.mu.Lock()
	c.opening = false
	if err != nil {
		c.mu.Unlock()
		c.observer.RecordingFailed(ctx, "Microphone unavailable")
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	next, terr := fsm.Recording(c.state, fsm.EventStart)
	if c.resets != resets || terr != nil {
		c.mu.Unlock()
		if _, ferr := device.Finish(); ferr != nil {
			c.warn("capture release failed", "error", ferr.Error(), "device", device.Name())
		}
		return ErrStartAborted
	}

	scope := &active{device: device, ticker: c.newTicker(time.Second), done: make(chan struct{})}
	c.current = scope
	c.state = next
	c.elapsed = 0
	c.audio = nil
	c.device = device.Name()
	c.mu.Unlock()

	go c.tick(ctx, scope)
	c.observer.RecordingStarted(ctx)
	return nil
}

// tick counts elapsed seconds until the scope is released. A canceled context
// finalizes the recording like an explicit stop.
func (c *Controller) tick(ctx context.Context, scope *active) {
	for {
		select {
		case <-scope.done:
			return
		case <-ctx.Done():
			c.stop(scope)
			return
		case <-scope.ticker.C():
			c.mu.Lock()
			if c.current == scope {
				c.elapsed++
			}
			c.mu.Unlock()
		}
	}
}

// Stop finalizes the capture and releases the device and ticker. Stopping
// when not recording is a no-op that returns the current snapshot.
func (c *Controller) Stop() Recording {
	return c.stop(nil)
}

// stop finalizes the active scope; a non-nil scope must still be current.
func (c *Controller) stop(scope *active) Recording {
	c.mu.Lock()
	if c.state != fsm.StateRecording || c.current == nil || (scope != nil && c.current != scope) {
		out := c.snapshotLocked()
		c.mu.Unlock()
		return out
	}

	audio, err := c.releaseLocked()
	c.state, _ = fsm.Recording(c.state, fsm.EventStop)
	c.audio = audio
	out := c.snapshotLocked()
	c.mu.Unlock()

	if err != nil {
		c.warn("capture finalize failed", "error", err.Error(), "device", out.Device)
	}
	c.observer.RecordingStopped(context.Background())
	return out
}

// Reset releases any active capture and discards the buffer.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		if _, err := c.releaseLocked(); err != nil {
			c.warn("capture release failed", "error", err.Error())
		}
	}
	c.resets++
	c.state, _ = fsm.Recording(c.state, fsm.EventReset)
	c.elapsed = 0
	c.audio = nil
	c.device = ""
}

// releaseLocked is the single release path for the ticker and device.
func (c *Controller) releaseLocked() ([]byte, error) {
	scope := c.current
	c.current = nil
	scope.ticker.Stop()
	close(scope.done)
	return scope.device.Finish()
}

func (c *Controller) warn(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, args...)
}
