package gesture

import "time"

// State is the voter state.
type State int

const (
	// StateIdle has an empty word history.
	StateIdle State = iota
	// StateAccumulating has at least one word candidate in its history.
	StateAccumulating
)

// String returns the state name.
func (s State) String() string {
	if s == StateAccumulating {
		return "accumulating"
	}
	return "idle"
}

// VoteConfig holds the commit rules for both regimes.
type VoteConfig struct {
	// HistorySize bounds the word candidate history.
	HistorySize int
	// MinSupport is how many history entries must agree before a word commits.
	MinSupport int
	// WordMinConfidence must be strictly exceeded by the current word candidate.
	WordMinConfidence float64
	// WordRepeatCooldown suppresses committing the previous word again.
	WordRepeatCooldown time.Duration
	// LetterMinConfidence must be strictly exceeded by a letter candidate.
	LetterMinConfidence float64
	// LetterCooldown is the minimum gap between a commit and the next letter.
	LetterCooldown time.Duration
}

// DefaultVoteConfig returns the thresholds the shipped models were tuned with.
func DefaultVoteConfig() VoteConfig {
	return VoteConfig{
		HistorySize:         10,
		MinSupport:          5,
		WordMinConfidence:   0.15,
		WordRepeatCooldown:  2 * time.Second,
		LetterMinConfidence: 0.4,
		LetterCooldown:      2 * time.Second,
	}
}

// Voter is the temporal debounce state machine. It is not safe for
// concurrent use; the recognition loop owns it.
//
// Words commit on majority agreement over a bounded history; letters commit
// on a confidence floor plus a global cooldown.
type Voter struct {
	cfg     VoteConfig
	history []string
	state   State

	hasLast bool
	lastKey string
	lastAt  time.Time
}

// NewVoter creates a Voter. Zero fields in cfg take their defaults.
func NewVoter(cfg VoteConfig) *Voter {
	def := DefaultVoteConfig()
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.MinSupport <= 0 {
		cfg.MinSupport = def.MinSupport
	}
	return &Voter{
		cfg:     cfg,
		history: make([]string, 0, cfg.HistorySize),
	}
}

// Observe feeds one candidate and reports the token to commit, if any.
func (v *Voter) Observe(c Candidate, now time.Time) (Token, bool) {
	switch c.Source {
	case SourceWord:
		return v.observeWord(c, now)
	case SourceLetter:
		return v.observeLetter(c, now)
	default:
		return Token{}, false
	}
}

func (v *Voter) observeWord(c Candidate, now time.Time) (Token, bool) {
	if len(v.history) >= v.cfg.HistorySize {
		copy(v.history, v.history[1:])
		v.history = v.history[:v.cfg.HistorySize-1]
	}
	v.history = append(v.history, c.Label)
	v.state = StateAccumulating

	label, count := v.Majority()
	if c.Label != label || count < v.cfg.MinSupport || c.Confidence <= v.cfg.WordMinConfidence {
		return Token{}, false
	}

	if v.hasLast && v.lastKey == c.Label && now.Sub(v.lastAt) < v.cfg.WordRepeatCooldown {
		return Token{}, false
	}

	v.history = v.history[:0]
	v.state = StateIdle
	return v.commit(c, now), true
}

func (v *Voter) observeLetter(c Candidate, now time.Time) (Token, bool) {
	if c.Confidence <= v.cfg.LetterMinConfidence {
		return Token{}, false
	}
	if v.hasLast && now.Sub(v.lastAt) < v.cfg.LetterCooldown {
		return Token{}, false
	}
	return v.commit(c, now), true
}

func (v *Voter) commit(c Candidate, now time.Time) Token {
	v.hasLast = true
	v.lastKey = c.Label
	v.lastAt = now
	return Token{Key: c.Label, Source: c.Source, At: now}
}

// Majority returns the most frequent label in the history and its count.
// Ties go to the label seen most recently.
func (v *Voter) Majority() (string, int) {
	counts := make(map[string]int, len(v.history))
	for _, l := range v.history {
		counts[l]++
	}

	best, bestCount := "", 0
	for i := len(v.history) - 1; i >= 0; i-- {
		l := v.history[i]
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best, bestCount
}

// Reset clears the history. The last commit is remembered so cooldowns
// still apply across a reset.
func (v *Voter) Reset() {
	v.history = v.history[:0]
	v.state = StateIdle
}

// State returns the current state.
func (v *Voter) State() State {
	return v.state
}

// History returns a copy of the word history, oldest first.
func (v *Voter) History() []string {
	out := make([]string, len(v.history))
	copy(out, v.history)
	return out
}

// LastCommit returns the most recently committed key and time.
func (v *Voter) LastCommit() (string, time.Time, bool) {
	return v.lastKey, v.lastAt, v.hasLast
}
