// Package capture acquires video frames from local cameras and network
// streams using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEmptyFrame is returned when the device delivered no image.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Camera is a single opened video device.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Opener opens a Camera for a Source.
type Opener interface {
	Open(src Source) (Camera, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(src Source) (Camera, error)

// Open implements Opener.
func (f OpenerFunc) Open(src Source) (Camera, error) {
	return f(src)
}

// DeviceOpener opens real devices through OpenCV.
type DeviceOpener struct {
	FPS int
}

// Open implements Opener.
func (o DeviceOpener) Open(src Source) (Camera, error) {
	c := NewCamera(src)
	if o.FPS > 0 {
		c.SetFPS(o.FPS)
	}
	if err := c.Open(); err != nil {
		return nil, err
	}
	return c, nil
}

// cameraImpl manages video capture from one source using GoCV.
type cameraImpl struct {
	source  Source
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	fps     int
}

// NewCamera creates a Camera for src. It is not opened.
func NewCamera(src Source) Camera {
	return &cameraImpl{
		source: src,
		fps:    DefaultFPS,
	}
}

// Open opens the device. Local devices are set to 640x480.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var device interface{} = c.source.Index
	if c.source.Kind == SourceNetwork {
		device = c.source.URL
	}

	capture, err := gocv.OpenVideoCaptureWithAPI(device, c.source.Backend.API())
	if err != nil {
		return fmt.Errorf("open %s: %w", c.source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open %s: device not available", c.source)
	}

	if c.source.Kind == SourceLocal {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
		capture.Set(gocv.VideoCaptureFPS, float64(c.fps))
	}
	// Keep latency low on network streams.
	capture.Set(gocv.VideoCaptureBufferSize, 1)

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the current frames per second setting.
func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
