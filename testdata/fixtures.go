// Package testdata builds synthetic frames and model artifacts for
// end-to-end tests.
package testdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// Translations is a small translations document in the import format.
const Translations = `{
	"3aslema": {"fr": "Bonjour", "en": "Hello", "ar": "عسلامة", "emoji": "👋"},
	"dar": {"fr": "Maison", "en": "House", "ar": "دار", "emoji": "🏠"},
	"A": {"fr": "A", "en": "A", "ar": "ا"},
	"B": {"fr": "B", "en": "B", "ar": "ب"}
}`

// Frame returns a BGR frame with a horizontal gradient. The caller must
// Close it.
func Frame(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	for x := 0; x < cols; x++ {
		v := uint8(x * 255 / max(cols-1, 1))
		for y := 0; y < rows; y++ {
			m.SetUCharAt(y, x*3, v)
			m.SetUCharAt(y, x*3+1, v)
			m.SetUCharAt(y, x*3+2, v)
		}
	}
	return m
}

type forestTree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type forestFile struct {
	NFeatures int          `json:"n_features"`
	Classes   []string     `json:"classes"`
	Trees     []forestTree `json:"trees"`
}

// ConstantForest returns a forest artifact of the given input width that
// answers label with confidence for every input; the rest goes to "other".
func ConstantForest(width int, label string, confidence float64) []byte {
	data, _ := json.Marshal(forestFile{
		NFeatures: width,
		Classes:   []string{label, "other"},
		Trees: []forestTree{{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Feature:       []int{-2},
			Threshold:     []float64{-2},
			Value:         [][]float64{{confidence, 1 - confidence}},
		}},
	})
	return data
}

// StumpForest returns a forest artifact with one split on feature:
// inputs at or below threshold are low, the others high.
func StumpForest(width, feature int, threshold float64, low, high string) []byte {
	data, _ := json.Marshal(forestFile{
		NFeatures: width,
		Classes:   []string{low, high},
		Trees: []forestTree{{
			ChildrenLeft:  []int{1, -1, -1},
			ChildrenRight: []int{2, -1, -1},
			Feature:       []int{feature, -2, -2},
			Threshold:     []float64{threshold, -2, -2},
			Value:         [][]float64{{0.5, 0.5}, {1, 0}, {0, 1}},
		}},
	})
	return data
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write fixture %s: %w", name, err)
	}
	return path, nil
}
