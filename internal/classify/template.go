package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

// Template is a labelled reference input.
type Template struct {
	Label  string    `json:"label"`
	Vector []float64 `json:"vector"`
}

// TemplateModel is a nearest-template classifier. A class scores
// 1/(1+d) for its closest template at distance d; scores are normalized into
// probabilities.
//
// With Frames > 1 inputs are treated as Frames consecutive feature vectors
// and compared with dynamic time warping, so a word signed slightly faster or
// slower than its template still matches.
type TemplateModel struct {
	classes   []string
	index     map[string]int
	width     int
	frames    int
	templates []Template
}

type templateFile struct {
	Width     int        `json:"width"`
	Frames    int        `json:"frames"`
	Templates []Template `json:"templates"`
}

// NewTemplateModel creates a TemplateModel over inputs of width values split
// into frames equal frames.
func NewTemplateModel(width, frames int, templates []Template) (*TemplateModel, error) {
	if frames <= 0 {
		frames = 1
	}
	if width <= 0 || width%frames != 0 {
		return nil, fmt.Errorf("templates: width %d is not divisible into %d frames", width, frames)
	}
	if len(templates) == 0 {
		return nil, errors.New("templates: none provided")
	}

	m := &TemplateModel{
		index:  make(map[string]int),
		width:  width,
		frames: frames,
	}
	for i, t := range templates {
		if t.Label == "" {
			return nil, fmt.Errorf("templates: template %d has no label", i)
		}
		if len(t.Vector) != width {
			return nil, fmt.Errorf("%w: template %d (%s) has %d values, want %d", ErrShapeMismatch, i, t.Label, len(t.Vector), width)
		}
		if _, ok := m.index[t.Label]; !ok {
			m.index[t.Label] = len(m.classes)
			m.classes = append(m.classes, t.Label)
		}
		m.templates = append(m.templates, t)
	}
	return m, nil
}

// LoadTemplates reads a template artifact from path.
func LoadTemplates(path string) (*TemplateModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	var f templateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return NewTemplateModel(f.Width, f.Frames, f.Templates)
}

// Classes implements Model.
func (m *TemplateModel) Classes() []string {
	return m.classes
}

// InputWidth implements Model.
func (m *TemplateModel) InputWidth() int {
	return m.width
}

// PredictProba implements Model.
func (m *TemplateModel) PredictProba(x []float64) ([]float64, error) {
	if len(x) != m.width {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(x), m.width)
	}

	scores := make([]float64, len(m.classes))
	for _, t := range m.templates {
		var d float64
		if m.frames == 1 {
			d = euclideanDistance(x, t.Vector)
		} else {
			d = dtwDistance(split(x, m.frames), split(t.Vector, m.frames))
		}

		score := 1.0 / (1.0 + d)
		if i := m.index[t.Label]; score > scores[i] {
			scores[i] = score
		}
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	for i := range scores {
		scores[i] /= total
	}
	return scores, nil
}

// LoadModel loads a forest or template artifact depending on the file name.
func LoadModel(path string) (Model, error) {
	if strings.HasSuffix(path, ".templates.json") {
		return LoadTemplates(path)
	}
	return LoadForest(path)
}

func split(x []float64, frames int) [][]float64 {
	w := len(x) / frames
	out := make([][]float64, frames)
	for i := range out {
		out[i] = x[i*w : (i+1)*w]
	}
	return out
}

// euclideanDistance returns the L2 distance between equal-length vectors.
func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// dtwDistance calculates Dynamic Time Warping distance between two frame
// sequences, normalized by the longer sequence length.
func dtwDistance(s1, s2 [][]float64) float64 {
	n := len(s1)
	m := len(s2)

	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	dtw := make([][]float64, n+1)
	for i := range dtw {
		dtw[i] = make([]float64, m+1)
		for j := range dtw[i] {
			dtw[i][j] = math.Inf(1)
		}
	}
	dtw[0][0] = 0

	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := euclideanDistance(s1[i-1], s2[j-1])
			dtw[i][j] = cost + min(dtw[i-1][j], dtw[i][j-1], dtw[i-1][j-1])
		}
	}

	return dtw[n][m] / float64(max(n, m))
}
