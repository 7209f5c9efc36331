package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Translate(t *testing.T) {
	hand := OpenPalmLandmarks()
	moved := hand.Translate(-0.1, 0.2)

	for i := 0; i < NumLandmarks; i++ {
		if math.Abs(moved.Points[i].X-(hand.Points[i].X-0.1)) > epsilon {
			t.Errorf("point %d: expected X %f, got %f", i, hand.Points[i].X-0.1, moved.Points[i].X)
		}
		if math.Abs(moved.Points[i].Y-(hand.Points[i].Y+0.2)) > epsilon {
			t.Errorf("point %d: expected Y %f, got %f", i, hand.Points[i].Y+0.2, moved.Points[i].Y)
		}
		if moved.Points[i].Z != hand.Points[i].Z {
			t.Errorf("point %d: Z should be unchanged", i)
		}
	}

	if hand.Points[Wrist].X != 0.5 {
		t.Error("Translate must not modify the receiver")
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("two hands", func(t *testing.T) {
		line := `{"hands":[{"points":[{"x":0.1,"y":0.2,"z":0}],"handedness":"Left","score":0.8},{"points":[],"handedness":"Right","score":0.6}]}` + "\n"

		hands, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 2 {
			t.Fatalf("expected 2 hands, got %d", len(hands))
		}
		if hands[0].Handedness != "Left" || hands[0].Score != 0.8 {
			t.Errorf("unexpected first hand %+v", hands[0])
		}
		if hands[0].Points[Wrist].X != 0.1 || hands[0].Points[Wrist].Y != 0.2 {
			t.Errorf("unexpected wrist %+v", hands[0].Points[Wrist])
		}
		if hands[1].Points[PinkyTip] != (Point3D{}) {
			t.Error("missing points should be zero")
		}
	})

	t.Run("no hands", func(t *testing.T) {
		hands, err := parseResponse([]byte(`{"hands":[]}`))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %d", len(hands))
		}
	})

	t.Run("service error", func(t *testing.T) {
		if _, err := parseResponse([]byte(`{"error":"model missing"}`)); err == nil {
			t.Error("expected error from service error field")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := parseResponse([]byte(`not json`)); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestNewMediaPipeDetector(t *testing.T) {
	t.Run("missing script", func(t *testing.T) {
		_, err := NewMediaPipeDetector(DefaultConfig(), MediaPipeOptions{ScriptPath: ""})
		if err != nil && !errors.Is(err, ErrScriptNotFound) {
			t.Errorf("expected ErrScriptNotFound, got %v", err)
		}
	})

	t.Run("explicit script", func(t *testing.T) {
		d, err := NewMediaPipeDetector(DefaultConfig(), MediaPipeOptions{ScriptPath: "/opt/helper.py", PythonPath: "/usr/bin/python3"})
		if err != nil {
			t.Fatalf("NewMediaPipeDetector() error = %v", err)
		}
		if d.opts.IdleTimeout != DefaultIdleTimeout {
			t.Errorf("expected default idle timeout, got %v", d.opts.IdleTimeout)
		}
		// Never started, so Close is a no-op.
		if err := d.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxHands != 2 {
		t.Errorf("expected MaxHands 2, got %d", cfg.MaxHands)
	}
	if cfg.MinConfidence != 0.3 {
		t.Errorf("expected MinConfidence 0.3, got %f", cfg.MinConfidence)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()

		expectedHands := []HandLandmarks{
			ThumbsUpLandmarks(),
			OpenPalmLandmarks(),
		}
		mock.SetHands(expectedHands)

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		mock := NewMockDetector()

		err := mock.Close()

		if err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
	})
}

func TestPose(t *testing.T) {
	tests := []struct {
		name  string
		shape Handshape
	}{
		{"fist", ShapeFist},
		{"open", ShapeOpen},
		{"thumb", ShapeThumb},
		{"point", ShapePoint},
		{"V", ShapeV},
		{"Y", ShapeY},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hand := Pose(tt.shape, 0.4, 0.7, 0.15)
			if got := hand.Extended(); got != tt.shape {
				t.Errorf("Extended() = %v, want %v", got, tt.shape)
			}
			if hand.WristX() != 0.4 || hand.Points[Wrist].Y != 0.7 {
				t.Errorf("wrist = %+v", hand.Points[Wrist])
			}
			// The shape must survive a move across the frame.
			if got := hand.Translate(0.3, -0.2).Extended(); got != tt.shape {
				t.Errorf("translated Extended() = %v, want %v", got, tt.shape)
			}
		})
	}
}

func TestMockDetector_Sequence(t *testing.T) {
	mock := NewMockDetector()
	frames := WaveSequence(3)
	frames = append(frames, nil)
	mock.SetSequence(frames)

	var xs []float64
	for i := 0; i < 5; i++ {
		hands, err := mock.Detect(nil)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if i == 3 {
			if len(hands) != 0 {
				t.Errorf("frame 3: expected no hands, got %d", len(hands))
			}
			continue
		}
		xs = append(xs, hands[0].WristX())
	}

	want := []float64{0.3, 0.5, 0.7, 0.3}
	for i := range want {
		if math.Abs(xs[i]-want[i]) > epsilon {
			t.Errorf("wrist x %d = %f, want %f", i, xs[i], want[i])
		}
	}
	if mock.Calls() != 5 {
		t.Errorf("Calls() = %d, want 5", mock.Calls())
	}

	mock.SetHands([]HandLandmarks{FistLandmarks()})
	if mock.Calls() != 0 {
		t.Error("a new script should restart the call count")
	}
	hands, _ := mock.Detect(nil)
	if len(hands) != 1 || hands[0].Extended() != ShapeFist {
		t.Errorf("expected a fist, got %v", hands)
	}
}

func TestThumbsUpLandmarks(t *testing.T) {
	landmarks := ThumbsUpLandmarks()

	t.Run("has correct handedness and score", func(t *testing.T) {
		if landmarks.Handedness != "Right" {
			t.Errorf("expected handedness Right, got %s", landmarks.Handedness)
		}
		if landmarks.Score < 0.9 {
			t.Errorf("expected score >= 0.9, got %f", landmarks.Score)
		}
	})

	t.Run("thumb is extended upward", func(t *testing.T) {
		// Thumb tip should be above (lower Y) than thumb MCP
		if landmarks.Points[ThumbTip].Y >= landmarks.Points[ThumbMCP].Y {
			t.Error("thumb tip should be above thumb MCP (lower Y value)")
		}

		// Thumb tip should be above thumb IP
		if landmarks.Points[ThumbTip].Y >= landmarks.Points[ThumbIP].Y {
			t.Error("thumb tip should be above thumb IP (lower Y value)")
		}
	})

	t.Run("other fingers are curled", func(t *testing.T) {
		// For curled fingers, the tip should be close to or below the MCP in Y
		// and generally curled back toward the palm

		// Index finger
		indexExtension := landmarks.Points[IndexMCP].Y - landmarks.Points[IndexTip].Y
		if indexExtension > 0.15 {
			t.Errorf("index finger appears extended (extension: %f), should be curled", indexExtension)
		}

		// Middle finger
		middleExtension := landmarks.Points[MiddleMCP].Y - landmarks.Points[MiddleTip].Y
		if middleExtension > 0.15 {
			t.Errorf("middle finger appears extended (extension: %f), should be curled", middleExtension)
		}

		// Ring finger
		ringExtension := landmarks.Points[RingMCP].Y - landmarks.Points[RingTip].Y
		if ringExtension > 0.15 {
			t.Errorf("ring finger appears extended (extension: %f), should be curled", ringExtension)
		}

		// Pinky finger
		pinkyExtension := landmarks.Points[PinkyMCP].Y - landmarks.Points[PinkyTip].Y
		if pinkyExtension > 0.15 {
			t.Errorf("pinky finger appears extended (extension: %f), should be curled", pinkyExtension)
		}
	})
}

func TestOpenPalmLandmarks(t *testing.T) {
	landmarks := OpenPalmLandmarks()

	t.Run("has correct handedness and score", func(t *testing.T) {
		if landmarks.Handedness != "Right" {
			t.Errorf("expected handedness Right, got %s", landmarks.Handedness)
		}
		if landmarks.Score < 0.9 {
			t.Errorf("expected score >= 0.9, got %f", landmarks.Score)
		}
	})

	t.Run("all fingers are extended", func(t *testing.T) {
		// For extended fingers, the tip should be significantly above (lower Y) the MCP
		minExtension := 0.2 // minimum expected extension

		// Index finger
		indexExtension := landmarks.Points[IndexMCP].Y - landmarks.Points[IndexTip].Y
		if indexExtension < minExtension {
			t.Errorf("index finger not extended enough (extension: %f), expected >= %f", indexExtension, minExtension)
		}

		// Middle finger
		middleExtension := landmarks.Points[MiddleMCP].Y - landmarks.Points[MiddleTip].Y
		if middleExtension < minExtension {
			t.Errorf("middle finger not extended enough (extension: %f), expected >= %f", middleExtension, minExtension)
		}

		// Ring finger
		ringExtension := landmarks.Points[RingMCP].Y - landmarks.Points[RingTip].Y
		if ringExtension < minExtension {
			t.Errorf("ring finger not extended enough (extension: %f), expected >= %f", ringExtension, minExtension)
		}

		// Pinky finger
		pinkyExtension := landmarks.Points[PinkyMCP].Y - landmarks.Points[PinkyTip].Y
		if pinkyExtension < minExtension {
			t.Errorf("pinky finger not extended enough (extension: %f), expected >= %f", pinkyExtension, minExtension)
		}
	})

	t.Run("thumb is extended to the side", func(t *testing.T) {
		// Thumb should be extended away from the palm (higher X for right hand)
		if landmarks.Points[ThumbTip].X <= landmarks.Points[ThumbMCP].X {
			t.Error("thumb tip should be to the right of thumb MCP (extended outward)")
		}
	})

	t.Run("fingers are properly ordered left to right", func(t *testing.T) {
		// For a right hand palm facing forward, fingers should be ordered
		// from left to right: pinky, ring, middle, index, thumb
		if landmarks.Points[PinkyMCP].X >= landmarks.Points[RingMCP].X {
			t.Error("pinky should be to the left of ring finger")
		}
		if landmarks.Points[RingMCP].X >= landmarks.Points[MiddleMCP].X {
			t.Error("ring should be to the left of middle finger")
		}
		if landmarks.Points[MiddleMCP].X >= landmarks.Points[IndexMCP].X {
			t.Error("middle should be to the left of index finger")
		}
	})
}
