package capture

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestNewMotionDetector(t *testing.T) {
	md := NewMotionDetector(1.5)
	defer md.Close()

	if md.threshold != 1.5 {
		t.Errorf("threshold = %f, want 1.5", md.threshold)
	}
	if md.initialized {
		t.Error("motion detector should not be initialized initially")
	}
	if got := md.StillFor(time.Now()); got != 0 {
		t.Errorf("StillFor() before first frame = %v, want 0", got)
	}
}

func TestMotionDetector_Detect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	t.Run("identical frames", func(t *testing.T) {
		md := NewMotionDetector(1.0)
		defer md.Close()

		if moving, pct := md.Detect(&black); moving || pct != 0 {
			t.Errorf("first frame = (%v, %f), want (false, 0)", moving, pct)
		}
		if moving, pct := md.Detect(&black); moving {
			t.Errorf("identical frames should not move, pct = %f", pct)
		}
	})

	t.Run("black to white", func(t *testing.T) {
		md := NewMotionDetector(1.0)
		defer md.Close()

		md.Detect(&black)
		moving, pct := md.Detect(&white)
		if !moving {
			t.Errorf("black to white should move, pct = %f", pct)
		}
		if pct < 50 {
			t.Errorf("pct = %f, want > 50", pct)
		}
	})

	t.Run("size change rebases", func(t *testing.T) {
		md := NewMotionDetector(1.0)
		defer md.Close()

		small := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
		defer small.Close()

		md.Detect(&black)
		if moving, _ := md.Detect(&small); moving {
			t.Error("a resized frame should only set a new baseline")
		}
	})

	t.Run("nil frame", func(t *testing.T) {
		md := NewMotionDetector(1.0)
		defer md.Close()

		if moving, pct := md.Detect(nil); moving || pct != 0 {
			t.Errorf("Detect(nil) = (%v, %f)", moving, pct)
		}
	})
}

func TestMotionDetector_StillFor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	md.Detect(&frame)

	if got := md.StillFor(time.Now().Add(5 * time.Second)); got < 4*time.Second {
		t.Errorf("StillFor() = %v, want about 5s", got)
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	if !md.initialized {
		t.Error("detector should be initialized after first Detect")
	}

	md.Reset()
	if md.initialized {
		t.Error("detector should not be initialized after Reset")
	}
	if !md.prevGray.Empty() {
		t.Error("prevGray should be empty after Reset")
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	if md.threshold != 5.0 {
		t.Errorf("threshold = %f, want 5.0", md.threshold)
	}

	md.SetThreshold(-1.0)
	if md.threshold != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", md.threshold)
	}
}

func TestMotionDetector_Close_Multiple(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}
