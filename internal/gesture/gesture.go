// Package gesture turns per-frame classifier output into committed tokens.
package gesture

import (
	"fmt"
	"time"
)

// Source identifies which recognition regime produced a candidate.
type Source int

const (
	// SourceLetter is a static, single-frame fingerspelled letter.
	SourceLetter Source = iota
	// SourceWord is a temporal, multi-frame word.
	SourceWord
	// SourceSpace is an explicit word boundary inserted by the user.
	SourceSpace
)

// String returns the lowercase name of the source.
func (s Source) String() string {
	switch s {
	case SourceLetter:
		return "letter"
	case SourceWord:
		return "word"
	case SourceSpace:
		return "space"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// MarshalText encodes the source by name.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a source name.
func (s *Source) UnmarshalText(b []byte) error {
	v, err := ParseSource(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSource parses "letter", "word" or "space".
func ParseSource(name string) (Source, error) {
	switch name {
	case "letter", "letters":
		return SourceLetter, nil
	case "word", "words":
		return SourceWord, nil
	case "space":
		return SourceSpace, nil
	default:
		return 0, fmt.Errorf("unknown source %q", name)
	}
}

// Candidate is one classifier answer for one frame or window.
type Candidate struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
}

// Token is a candidate that passed voting and belongs to the phrase.
type Token struct {
	Key    string    `json:"key"`
	Source Source    `json:"source"`
	At     time.Time `json:"at"`
}
