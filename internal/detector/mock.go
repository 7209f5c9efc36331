package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector replays scripted detections. Each Detect call returns the
// next entry of the script, wrapping around at the end.
type MockDetector struct {
	mu     sync.Mutex
	script [][]HandLandmarks
	err    error
	calls  int
}

func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands makes every call return hands.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.SetSequence([][]HandLandmarks{hands})
}

// SetSequence makes successive calls walk through frames, one entry per
// frame; a nil entry is a frame without hands.
func (m *MockDetector) SetSequence(frames [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = frames
	m.calls = 0
}

// SetError makes Detect fail until cleared with nil.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many frames were submitted.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) == 0 {
		return nil, nil
	}
	return m.script[n%len(m.script)], nil
}

func (m *MockDetector) Close() error {
	return nil
}

// ThumbsUpLandmarks is a right hand with only the thumb raised.
func ThumbsUpLandmarks() HandLandmarks {
	return Pose(ShapeThumb, 0.5, 0.8, 0.2)
}

// OpenPalmLandmarks is a right hand with every digit spread.
func OpenPalmLandmarks() HandLandmarks {
	return Pose(ShapeOpen, 0.5, 0.8, 0.2)
}

// FistLandmarks is a closed right hand, the "A" handshape.
func FistLandmarks() HandLandmarks {
	return Pose(ShapeFist, 0.5, 0.8, 0.2)
}

// WaveSequence returns n frames of an open palm sweeping from left to right
// across the frame, a simple moving sign.
func WaveSequence(n int) [][]HandLandmarks {
	frames := make([][]HandLandmarks, n)
	for i := range frames {
		x := 0.3
		if n > 1 {
			x += 0.4 * float64(i) / float64(n-1)
		}
		frames[i] = []HandLandmarks{Pose(ShapeOpen, x, 0.8, 0.2)}
	}
	return frames
}
