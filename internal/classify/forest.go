package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// leaf marks a node without children in the exported tree arrays.
const leaf = -1

// Forest is a random forest exported from a trained ensemble of decision
// trees. Class probabilities are the mean of the per-tree leaf distributions.
type Forest struct {
	classes []string
	width   int
	trees   []tree
}

type tree struct {
	left      []int
	right     []int
	feature   []int
	threshold []float64
	value     [][]float64
}

// forestFile is the on-disk artifact layout.
//
// Classes may be strings or integer ids. Integer ids are resolved through
// Labels (keyed by the decimal id) when present.
type forestFile struct {
	NFeatures int               `json:"n_features"`
	Classes   []json.RawMessage `json:"classes"`
	Labels    map[string]string `json:"labels,omitempty"`
	Trees     []struct {
		ChildrenLeft  []int       `json:"children_left"`
		ChildrenRight []int       `json:"children_right"`
		Feature       []int       `json:"feature"`
		Threshold     []float64   `json:"threshold"`
		Value         [][]float64 `json:"value"`
	} `json:"trees"`
}

// LoadForest reads a forest artifact from path.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forest: %w", err)
	}
	return ParseForest(data)
}

// ParseForest decodes and validates a forest artifact.
func ParseForest(data []byte) (*Forest, error) {
	var f forestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse forest: %w", err)
	}

	if f.NFeatures <= 0 {
		return nil, errors.New("forest: n_features must be positive")
	}
	if len(f.Classes) == 0 {
		return nil, errors.New("forest: no classes")
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest: no trees")
	}

	classes, err := resolveClasses(f.Classes, f.Labels)
	if err != nil {
		return nil, err
	}

	m := &Forest{
		classes: classes,
		width:   f.NFeatures,
		trees:   make([]tree, len(f.Trees)),
	}

	for i, t := range f.Trees {
		n := len(t.ChildrenLeft)
		if n == 0 || len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
			return nil, fmt.Errorf("forest: tree %d has inconsistent node arrays", i)
		}
		for j := 0; j < n; j++ {
			l, r := t.ChildrenLeft[j], t.ChildrenRight[j]
			if l == leaf {
				if len(t.Value[j]) != len(classes) {
					return nil, fmt.Errorf("forest: tree %d leaf %d has %d values for %d classes", i, j, len(t.Value[j]), len(classes))
				}
				continue
			}
			if l <= j || l >= n || r <= j || r >= n {
				return nil, fmt.Errorf("forest: tree %d node %d has invalid children", i, j)
			}
			if t.Feature[j] < 0 || t.Feature[j] >= f.NFeatures {
				return nil, fmt.Errorf("forest: tree %d node %d splits on feature %d", i, j, t.Feature[j])
			}
		}
		m.trees[i] = tree{
			left:      t.ChildrenLeft,
			right:     t.ChildrenRight,
			feature:   t.Feature,
			threshold: t.Threshold,
			value:     t.Value,
		}
	}

	return m, nil
}

func resolveClasses(raw []json.RawMessage, labels map[string]string) ([]string, error) {
	classes := make([]string, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			classes[i] = s
			continue
		}

		var id int
		if err := json.Unmarshal(r, &id); err != nil {
			return nil, fmt.Errorf("forest: class %d is neither a string nor an integer", i)
		}
		key := strconv.Itoa(id)
		if label, ok := labels[key]; ok {
			classes[i] = label
		} else {
			classes[i] = key
		}
	}
	return classes, nil
}

// Classes implements Model.
func (m *Forest) Classes() []string {
	return m.classes
}

// InputWidth implements Model.
func (m *Forest) InputWidth() int {
	return m.width
}

// PredictProba implements Model.
func (m *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != m.width {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShapeMismatch, len(x), m.width)
	}

	probs := make([]float64, len(m.classes))
	for _, t := range m.trees {
		dist := t.predict(x)

		var total float64
		for _, v := range dist {
			total += v
		}
		if total == 0 {
			continue
		}
		for i, v := range dist {
			probs[i] += v / total
		}
	}

	n := float64(len(m.trees))
	for i := range probs {
		probs[i] /= n
	}
	return probs, nil
}

func (t tree) predict(x []float64) []float64 {
	node := 0
	for t.left[node] != leaf {
		if x[t.feature[node]] <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.value[node]
}
