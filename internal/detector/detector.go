package detector

import "gocv.io/x/gocv"

// Detector finds hands in a frame. A frame without hands yields an empty
// result, not an error; errors mean the detector itself failed.
type Detector interface {
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)
	Close() error
}

// Config tunes hand detection.
type Config struct {
	MaxHands        int     // signs use at most two hands
	MinConfidence   float64 // detection score threshold in [0,1]
	MinTrackingConf float64
}

// DefaultConfig returns two hands at 0.3 confidence, low enough for dim
// webcams where signing usually happens.
func DefaultConfig() Config {
	return Config{MaxHands: 2, MinConfidence: 0.3, MinTrackingConf: 0.3}
}
