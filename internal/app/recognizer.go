package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/ishara/internal/classify"
	"github.com/ayusman/ishara/internal/feature"
	"github.com/ayusman/ishara/internal/gesture"
)

// ErrInvalidMode is returned by SetMode for anything but letters or words.
var ErrInvalidMode = errors.New("invalid recognition mode")

// RecognizerConfig configures a Recognizer.
type RecognizerConfig struct {
	SequenceLength int
	Vote           gesture.VoteConfig
	Mode           gesture.Source
	Logger         *slog.Logger
	// Now is the clock used for vote timing. Defaults to time.Now.
	Now func() time.Time
}

// Recognizer turns frames into committed tokens. It owns the extractor,
// the classifiers, the sliding window and the voter, and is driven by a
// single goroutine; it is not safe for concurrent use.
type Recognizer struct {
	extractor *feature.Extractor
	engine    *classify.Engine
	window    *gesture.Window
	voter     *gesture.Voter
	mode      gesture.Source
	now       func() time.Time
	log       *slog.Logger

	last    gesture.Candidate
	hasLast bool
}

// NewRecognizer creates a Recognizer.
func NewRecognizer(ex *feature.Extractor, eng *classify.Engine, cfg RecognizerConfig) (*Recognizer, error) {
	if cfg.Mode != gesture.SourceLetter && cfg.Mode != gesture.SourceWord {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, cfg.Mode)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Recognizer{
		extractor: ex,
		engine:    eng,
		window:    gesture.NewWindow(cfg.SequenceLength),
		voter:     gesture.NewVoter(cfg.Vote),
		mode:      cfg.Mode,
		now:       cfg.Now,
		log:       cfg.Logger,
	}, nil
}

// Mode returns the active recognition mode.
func (r *Recognizer) Mode() gesture.Source {
	return r.mode
}

// SetMode switches between letters and words. The window and the vote
// history are cleared together so nothing from one mode reaches the other.
func (r *Recognizer) SetMode(mode gesture.Source) error {
	if mode != gesture.SourceLetter && mode != gesture.SourceWord {
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if mode != r.mode {
		r.log.Info("recognition mode changed", "from", r.mode.String(), "to", mode.String())
	}
	r.mode = mode
	r.Reset()
	return nil
}

// Reset clears the window, the vote history and the last candidate.
func (r *Recognizer) Reset() {
	r.window.Reset()
	r.voter.Reset()
	r.hasLast = false
}

// Available reports whether mode has a loaded model.
func (r *Recognizer) Available(mode gesture.Source) bool {
	switch mode {
	case gesture.SourceLetter:
		return r.engine.StaticAvailable()
	case gesture.SourceWord:
		return r.engine.SequenceAvailable()
	default:
		return false
	}
}

// PushFrame runs one frame through extraction, classification and voting.
// Frames without a hand leave every piece of state untouched.
func (r *Recognizer) PushFrame(frame *gocv.Mat) (gesture.Token, bool, error) {
	v, ok, err := r.extractor.Extract(frame)
	if err != nil {
		return gesture.Token{}, false, fmt.Errorf("extract features: %w", err)
	}
	if !ok {
		r.hasLast = false
		return gesture.Token{}, false, nil
	}
	return r.PushVector(v)
}

// PushVector is PushFrame for an already extracted feature vector.
func (r *Recognizer) PushVector(v feature.Vector) (gesture.Token, bool, error) {
	c, ok, err := r.candidate(v)
	if err != nil || !ok {
		return gesture.Token{}, false, err
	}

	r.last = c
	r.hasLast = true

	tok, committed := r.voter.Observe(c, r.now())
	if committed {
		r.log.Info("token committed", "key", tok.Key, "source", tok.Source.String(), "confidence", c.Confidence)
	}
	return tok, committed, nil
}

func (r *Recognizer) candidate(v feature.Vector) (gesture.Candidate, bool, error) {
	if !r.Available(r.mode) {
		return gesture.Candidate{}, false, nil
	}

	var (
		res classify.Result
		err error
	)
	switch r.mode {
	case gesture.SourceWord:
		r.window.Push(v)
		if !r.window.Full() {
			return gesture.Candidate{}, false, nil
		}
		flat, ferr := r.window.Flatten()
		if ferr != nil {
			return gesture.Candidate{}, false, ferr
		}
		res, err = r.engine.ClassifySequence(flat)
	default:
		res, err = r.engine.ClassifyStatic(v)
	}
	if err != nil {
		return gesture.Candidate{}, false, fmt.Errorf("classify %s: %w", r.mode, err)
	}

	r.log.Debug("candidate", "label", res.Label, "confidence", res.Confidence, "mode", r.mode.String())
	return gesture.Candidate{Label: res.Label, Confidence: res.Confidence, Source: r.mode}, true, nil
}

// LastCandidate returns the candidate from the most recent frame that had one.
func (r *Recognizer) LastCandidate() (gesture.Candidate, bool) {
	return r.last, r.hasLast
}

// WindowFill returns the buffered frame count and the window capacity.
func (r *Recognizer) WindowFill() (int, int) {
	return r.window.Len(), r.window.Size()
}

// History returns a copy of the word vote history.
func (r *Recognizer) History() []string {
	return r.voter.History()
}

// Close releases the extractor.
func (r *Recognizer) Close() error {
	return r.extractor.Close()
}
