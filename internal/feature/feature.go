// Package feature turns detected hand landmarks into the fixed-width vectors
// consumed by the classifiers.
package feature

import (
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/ayusman/ishara/internal/detector"
)

// Vector layout constants.
const (
	// MaxHands is the number of hands encoded in a vector.
	MaxHands = 2
	// CoordsPerLandmark is x and y; depth is not used.
	CoordsPerLandmark = 2
	// Width is the length of every Vector.
	Width = MaxHands * detector.NumLandmarks * CoordsPerLandmark
)

// Vector is a fixed-width numeric encoding of the hands in one frame.
type Vector []float64

// Extractor runs hand detection on a frame and encodes the result.
type Extractor struct {
	detector detector.Detector
	minScore float64
}

// NewExtractor creates an Extractor. Hands scoring below minScore are ignored.
func NewExtractor(d detector.Detector, minScore float64) *Extractor {
	return &Extractor{detector: d, minScore: minScore}
}

// Extract detects hands in frame. ok is false when no hand passes the
// confidence threshold; err reports detector failures.
func (e *Extractor) Extract(frame *gocv.Mat) (v Vector, ok bool, err error) {
	hands, err := e.detector.Detect(frame)
	if err != nil {
		return nil, false, err
	}
	v, ok = FromHands(hands, e.minScore)
	return v, ok, nil
}

// Close releases the underlying detector.
func (e *Extractor) Close() error {
	return e.detector.Close()
}

// FromHands encodes hands into a Vector.
//
// Hands below minScore are dropped and at most the two best-scoring hands
// are kept. Retained hands are ordered by wrist x, then every coordinate is
// shifted so the minimum x and minimum y across all retained landmarks are
// zero. A missing second hand is zero-padded. The result always has Width
// elements; no hands yields (nil, false).
func FromHands(hands []detector.HandLandmarks, minScore float64) (Vector, bool) {
	kept := make([]detector.HandLandmarks, 0, len(hands))
	for _, h := range hands {
		if h.Score >= minScore {
			kept = append(kept, h)
		}
	}
	if len(kept) == 0 {
		return nil, false
	}

	if len(kept) > MaxHands {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Score > kept[j].Score
		})
		kept = kept[:MaxHands]
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].WristX() < kept[j].WristX()
	})

	minX, minY := math.Inf(1), math.Inf(1)
	for _, h := range kept {
		for _, p := range h.Points {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
		}
	}

	v := make(Vector, Width)
	i := 0
	for _, h := range kept {
		for _, p := range h.Points {
			v[i] = p.X - minX
			v[i+1] = p.Y - minY
			i += CoordsPerLandmark
		}
	}

	return v, true
}
