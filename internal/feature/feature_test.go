package feature

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/ishara/internal/detector"
)

const epsilon = 1e-9

func TestFromHands_Width(t *testing.T) {
	left := detector.OpenPalmLandmarks().Translate(-0.3, 0)
	right := detector.ThumbsUpLandmarks().Translate(0.2, 0)
	extra := detector.OpenPalmLandmarks()
	extra.Score = 0.5

	tests := []struct {
		name  string
		hands []detector.HandLandmarks
	}{
		{"one hand", []detector.HandLandmarks{right}},
		{"two hands", []detector.HandLandmarks{right, left}},
		{"three hands", []detector.HandLandmarks{right, extra, left}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := FromHands(tt.hands, 0.3)
			if !ok {
				t.Fatal("expected a vector")
			}
			if len(v) != Width {
				t.Errorf("expected width %d, got %d", Width, len(v))
			}
		})
	}
}

func TestFromHands_NoHands(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if v, ok := FromHands(nil, 0.3); ok || v != nil {
			t.Errorf("expected (nil, false), got (%v, %v)", v, ok)
		}
	})

	t.Run("all below threshold", func(t *testing.T) {
		hand := detector.OpenPalmLandmarks()
		hand.Score = 0.2
		if _, ok := FromHands([]detector.HandLandmarks{hand}, 0.3); ok {
			t.Error("expected low-confidence hand to be ignored")
		}
	})
}

func TestFromHands_MinShift(t *testing.T) {
	hand := detector.OpenPalmLandmarks()
	v, _ := FromHands([]detector.HandLandmarks{hand}, 0.3)

	minX, minY := math.Inf(1), math.Inf(1)
	for i := 0; i < detector.NumLandmarks; i++ {
		minX = math.Min(minX, v[i*2])
		minY = math.Min(minY, v[i*2+1])
	}
	if math.Abs(minX) > epsilon || math.Abs(minY) > epsilon {
		t.Errorf("expected min x/y of 0, got %f/%f", minX, minY)
	}

	// Translation invariant: the same hand anywhere in the frame encodes identically.
	moved, _ := FromHands([]detector.HandLandmarks{hand.Translate(0.2, -0.1)}, 0.3)
	for i := range v {
		if math.Abs(v[i]-moved[i]) > epsilon {
			t.Fatalf("index %d: %f != %f", i, v[i], moved[i])
		}
	}
}

func TestFromHands_ZeroPadding(t *testing.T) {
	v, _ := FromHands([]detector.HandLandmarks{detector.ThumbsUpLandmarks()}, 0.3)

	half := Width / 2
	for i := half; i < Width; i++ {
		if v[i] != 0 {
			t.Fatalf("expected zero padding at %d, got %f", i, v[i])
		}
	}
}

func TestFromHands_LeftToRight(t *testing.T) {
	left := detector.OpenPalmLandmarks().Translate(-0.3, 0)
	right := detector.ThumbsUpLandmarks().Translate(0.3, 0)

	a, _ := FromHands([]detector.HandLandmarks{right, left}, 0.3)
	b, _ := FromHands([]detector.HandLandmarks{left, right}, 0.3)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("detection order changed the vector at %d", i)
		}
	}

	// First block is the hand whose wrist is further left.
	half := Width / 2
	if a[detector.Wrist*2] >= a[half+detector.Wrist*2] {
		t.Error("expected first hand wrist x to be smaller than second")
	}
}

func TestFromHands_KeepsBestTwo(t *testing.T) {
	a := detector.OpenPalmLandmarks().Translate(-0.3, 0)
	a.Score = 0.9
	b := detector.ThumbsUpLandmarks().Translate(0.3, 0)
	b.Score = 0.8
	weak := detector.OpenPalmLandmarks().Translate(-0.45, 0)
	weak.Score = 0.4

	withWeak, _ := FromHands([]detector.HandLandmarks{weak, a, b}, 0.3)
	without, _ := FromHands([]detector.HandLandmarks{a, b}, 0.3)

	for i := range withWeak {
		if withWeak[i] != without[i] {
			t.Fatalf("expected weakest hand to be dropped (index %d)", i)
		}
	}
}

func TestExtractor(t *testing.T) {
	mock := detector.NewMockDetector()
	ex := NewExtractor(mock, 0.3)

	t.Run("no hands", func(t *testing.T) {
		_, ok, err := ex.Extract(nil)
		if err != nil || ok {
			t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
		}
	})

	t.Run("hand", func(t *testing.T) {
		mock.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})
		v, ok, err := ex.Extract(nil)
		if err != nil || !ok {
			t.Fatalf("expected vector, got (%v, %v)", ok, err)
		}
		if len(v) != Width {
			t.Errorf("expected width %d, got %d", Width, len(v))
		}
	})

	t.Run("detector error", func(t *testing.T) {
		boom := errors.New("boom")
		mock.SetError(boom)
		defer mock.SetError(nil)

		if _, _, err := ex.Extract(nil); !errors.Is(err, boom) {
			t.Errorf("expected detector error, got %v", err)
		}
	})
}
