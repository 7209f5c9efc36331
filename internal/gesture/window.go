package gesture

import (
	"errors"

	"github.com/ayusman/ishara/internal/feature"
)

// DefaultSequenceLength is the number of frames a word classifier consumes.
const DefaultSequenceLength = 15

// ErrWindowNotFull is returned by Flatten before the window reaches capacity.
var ErrWindowNotFull = errors.New("window not full")

// Window is a fixed-capacity FIFO of feature vectors. Pushing onto a full
// window evicts the oldest vector.
type Window struct {
	frames []feature.Vector
	size   int
}

// NewWindow creates a Window holding size vectors.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultSequenceLength
	}
	return &Window{
		frames: make([]feature.Vector, 0, size),
		size:   size,
	}
}

// Push appends v, evicting the oldest vector when full.
func (w *Window) Push(v feature.Vector) {
	if len(w.frames) >= w.size {
		copy(w.frames, w.frames[1:])
		w.frames = w.frames[:w.size-1]
	}
	w.frames = append(w.frames, v)
}

// Full reports whether the window holds exactly Size vectors.
func (w *Window) Full() bool {
	return len(w.frames) == w.size
}

// Len returns the number of buffered vectors.
func (w *Window) Len() int {
	return len(w.frames)
}

// Size returns the window capacity.
func (w *Window) Size() int {
	return w.size
}

// Flatten concatenates the buffered vectors oldest first.
func (w *Window) Flatten() (feature.Vector, error) {
	if !w.Full() {
		return nil, ErrWindowNotFull
	}

	n := 0
	for _, f := range w.frames {
		n += len(f)
	}

	out := make(feature.Vector, 0, n)
	for _, f := range w.frames {
		out = append(out, f...)
	}
	return out, nil
}

// Reset empties the window.
func (w *Window) Reset() {
	w.frames = w.frames[:0]
}
