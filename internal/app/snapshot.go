package app

import (
	"time"

	"github.com/ayusman/ishara/internal/capture"
	"github.com/ayusman/ishara/internal/gesture"
)

// Snapshot is an immutable view of the loop state. The loop publishes a
// new one every tick; readers must not modify it.
type Snapshot struct {
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updated_at"`

	Mode              string `json:"mode"`
	Language          string `json:"language"`
	StaticAvailable   bool   `json:"static_available"`
	SequenceAvailable bool   `json:"sequence_available"`

	Phrase      string          `json:"phrase"`
	PhraseEmoji string          `json:"phrase_emoji"`
	Tokens      []gesture.Token `json:"tokens"`
	LastToken   *gesture.Token  `json:"last_token,omitempty"`

	Candidate  *gesture.Candidate `json:"candidate,omitempty"`
	History    []string           `json:"history,omitempty"`
	WindowFill int                `json:"window_fill"`
	WindowSize int                `json:"window_size"`

	Camera CameraState `json:"camera"`
	Motion float64     `json:"motion"`

	Paused    bool     `json:"paused"`
	Listening bool     `json:"listening"`
	Display   *Display `json:"display,omitempty"`
	Queued    int      `json:"queued"`
	Notice    string   `json:"notice,omitempty"`
}

// CameraState summarizes the capture manager.
type CameraState struct {
	Connected  bool             `json:"connected"`
	Degraded   bool             `json:"degraded"`
	Session    *capture.Session `json:"session,omitempty"`
	Reads      uint64           `json:"reads"`
	Failures   uint64           `json:"failures"`
	Reconnects uint64           `json:"reconnects"`
	StillFor   time.Duration    `json:"still_for"`
}

// DisplayKind tells the render surface what a Display item shows.
type DisplayKind string

// Display kinds.
const (
	DisplayImage  DisplayKind = "image"  // reference image of a whole word
	DisplayLetter DisplayKind = "letter" // one letter of a spelled word
	DisplaySpace  DisplayKind = "space"  // pause between spelled words
	DisplayNotice DisplayKind = "notice" // text only, e.g. nothing recognized
)

// Display is one item of the speech-to-gesture display queue.
type Display struct {
	Kind  DisplayKind   `json:"kind"`
	Key   string        `json:"key,omitempty"`
	Text  string        `json:"text,omitempty"`
	Image string        `json:"image,omitempty"` // filesystem path, empty when none was found
	Hold  time.Duration `json:"hold"`
	Until time.Time     `json:"until"`
}
