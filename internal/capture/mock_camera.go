package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back pre-recorded frames for testing.
type MockCamera struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
	failing bool
	closes  int
}

// NewMockCamera creates a MockCamera over frames.
func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
	}
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.closes++
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}
	if c.failing {
		return nil, errors.New("simulated read failure")
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	// Clone the frame so the original isn't modified
	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {}
func (c *MockCamera) FPS() int       { return DefaultFPS }
func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetFailing makes every subsequent read fail until cleared.
func (c *MockCamera) SetFailing(failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = failing
}

// Closes returns how many times Close was called.
func (c *MockCamera) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}

// Reset restarts playback from the beginning
func (c *MockCamera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = 0
}

// MockOpener hands out registered MockCameras by source and records every
// open attempt. Unregistered sources fail to open.
type MockOpener struct {
	mu      sync.Mutex
	devices map[string]*MockCamera
	opened  []Source
}

// NewMockOpener creates an empty MockOpener.
func NewMockOpener() *MockOpener {
	return &MockOpener{devices: make(map[string]*MockCamera)}
}

// Register makes src openable as cam.
func (o *MockOpener) Register(src Source, cam *MockCamera) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.devices[src.String()] = cam
}

// Unregister makes src fail to open.
func (o *MockOpener) Unregister(src Source) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.devices, src.String())
}

// Open implements Opener.
func (o *MockOpener) Open(src Source) (Camera, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opened = append(o.opened, src)
	cam, ok := o.devices[src.String()]
	if !ok {
		return nil, fmt.Errorf("open %s: device not available", src)
	}
	if err := cam.Open(); err != nil {
		return nil, err
	}
	return cam, nil
}

// Opened returns every source Open was called with, in order.
func (o *MockOpener) Opened() []Source {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Source, len(o.opened))
	copy(out, o.opened)
	return out
}
