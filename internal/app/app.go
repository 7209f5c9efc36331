// Package app runs the Ishara recognition loop: it reads frames, turns them
// into committed tokens, maintains the phrase and dispatches speech, image
// lookups and notifications without ever blocking on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/ishara/internal/capture"
	"github.com/ayusman/ishara/internal/classify"
	"github.com/ayusman/ishara/internal/config"
	"github.com/ayusman/ishara/internal/detector"
	"github.com/ayusman/ishara/internal/feature"
	"github.com/ayusman/ishara/internal/gallery"
	"github.com/ayusman/ishara/internal/gesture"
	"github.com/ayusman/ishara/internal/notify"
	"github.com/ayusman/ishara/internal/phrase"
	"github.com/ayusman/ishara/internal/speech"
	"github.com/ayusman/ishara/internal/store"
)

var (
	// ErrNotRunning is returned by commands sent before Start or after Stop.
	ErrNotRunning = errors.New("app not running")
	// ErrStopped is returned by Start once Stop has run. An App is single-use.
	ErrStopped = errors.New("app stopped")
	// ErrBusy is returned by Listen while a listen is already in progress.
	ErrBusy = errors.New("listen already in progress")
	// ErrEmptyPhrase is returned by Speak when there is nothing to say.
	ErrEmptyPhrase = errors.New("phrase is empty")
	// ErrUnsupportedLanguage is returned by SetLanguage.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Loop defaults.
const (
	DefaultTargetFPS = 30
	noticeHold       = 5 * time.Second
	notifyTimeout    = 3 * time.Second
	resultBuffer     = 16
	eventBuffer      = 64
)

// Config holds the dependencies and tuning of an App.
type Config struct {
	Capture  *capture.Manager
	Detector detector.Detector
	// Static and Sequence may be nil; a nil model disables its mode.
	Static         classify.Model
	Sequence       classify.Model
	SequenceLength int
	MinConfidence  float64
	Vote           gesture.VoteConfig
	Mode           gesture.Source

	Language    string
	Corrections map[string]string
	// NetworkURL, when set, is opened instead of probing local devices.
	NetworkURL      string
	TargetFPS       int
	MotionThreshold float64

	Store    *store.Store    // optional: settings and utterance history
	Lexicon  *phrase.Lexicon // optional: translations, emoji and reverse lookup
	Gallery  *gallery.Gallery
	Fetcher  *gallery.Fetcher
	Speaker  speech.Synthesizer
	Listener speech.Listener
	Notifier notify.Notifier

	SpeakTimeout  time.Duration
	ListenTimeout time.Duration
	DisplayHold   time.Duration
	MissHold      time.Duration
	LetterHold    time.Duration
	SpaceHold     time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

func (c *Config) applyDefaults() {
	if c.TargetFPS <= 0 {
		c.TargetFPS = DefaultTargetFPS
	}
	if c.TargetFPS > config.MaxTargetFPS {
		c.TargetFPS = config.MaxTargetFPS
	}
	if c.SequenceLength <= 0 {
		c.SequenceLength = config.DefaultSequenceLength
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = config.DefaultMinConfidence
	}
	if c.MotionThreshold <= 0 {
		c.MotionThreshold = config.DefaultMotionThreshold
	}
	if c.Language == "" {
		c.Language = config.DefaultLanguage
	}
	if c.SpeakTimeout <= 0 {
		c.SpeakTimeout = config.DefaultSpeakTimeout
	}
	if c.ListenTimeout <= 0 {
		c.ListenTimeout = config.DefaultListenTimeout
	}
	if c.DisplayHold <= 0 {
		c.DisplayHold = config.DefaultDisplayHold
	}
	if c.MissHold <= 0 {
		c.MissHold = config.DefaultMissHold
	}
	if c.LetterHold <= 0 {
		c.LetterHold = config.DefaultLetterHold
	}
	if c.SpaceHold <= 0 {
		c.SpaceHold = config.DefaultSpaceHold
	}
	if c.Notifier == nil {
		c.Notifier = notify.Nop{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// frameJPEG is the latest encoded preview frame.
type frameJPEG struct {
	seq  uint64
	data []byte
}

// App owns the camera, the recognizer and the phrase. Every mutation runs
// on the loop goroutine; other goroutines post commands and read
// snapshots.
type App struct {
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
	capture  *capture.Manager
	rec      *Recognizer
	motion   *capture.MotionDetector
	phrase   *phrase.Assembler
	lexicon  *phrase.Lexicon
	store    *store.Store
	gallery  *gallery.Gallery
	fetcher  *gallery.Fetcher
	speaker  *speech.Queue
	listener speech.Listener
	notifier notify.Notifier

	commands chan func()
	results  chan any
	events   chan notify.Event

	snapshot atomic.Pointer[Snapshot]
	frame    atomic.Pointer[frameJPEG]
	running  atomic.Bool
	stopped  atomic.Bool
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Loop-owned state.
	lang        string
	userPaused  bool
	wasPaused   bool
	listening   bool
	fetching    int
	current     *Display
	queue       []Display
	notice      string
	noticeUntil time.Time
	motionPct   float64
	lastToken   *gesture.Token
	extractErrs int
	frameSeq    uint64
	seq         uint64
}

// New builds an App. It fails when a model does not match the feature
// layout; a missing model only disables its mode.
func New(cfg Config) (*App, error) {
	if cfg.Capture == nil {
		return nil, errors.New("app: capture manager is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("app: detector is required")
	}
	cfg.applyDefaults()

	engine, err := classify.NewEngine(cfg.Static, cfg.Sequence, cfg.SequenceLength)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      cfg.Logger,
		now:      cfg.Now,
		capture:  cfg.Capture,
		motion:   capture.NewMotionDetector(cfg.MotionThreshold),
		lexicon:  cfg.Lexicon,
		store:    cfg.Store,
		gallery:  cfg.Gallery,
		fetcher:  cfg.Fetcher,
		listener: cfg.Listener,
		notifier: cfg.Notifier,
		commands: make(chan func()),
		results:  make(chan any, resultBuffer),
		events:   make(chan notify.Event, eventBuffer),
		done:     make(chan struct{}),
		lang:     cfg.Language,
	}

	a.phrase = phrase.NewAssembler(nil, cfg.Corrections)
	if cfg.Lexicon != nil {
		a.phrase.SetTranslator(cfg.Lexicon)
	}

	mode := a.restoreSettings(engine)
	a.rec, err = NewRecognizer(feature.NewExtractor(cfg.Detector, cfg.MinConfidence), engine, RecognizerConfig{
		SequenceLength: cfg.SequenceLength,
		Vote:           cfg.Vote,
		Mode:           mode,
		Logger:         cfg.Logger,
		Now:            cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Speaker != nil {
		a.speaker = speech.NewQueue(cfg.Speaker, speech.DefaultQueueSize, cfg.SpeakTimeout, func(o speech.Outcome) {
			a.post(spokenResult{outcome: o})
		}, cfg.Logger)
	}

	if !engine.StaticAvailable() && !engine.SequenceAvailable() {
		a.log.Warn("no classifier loaded, recognition disabled")
	}

	a.publish(a.now())
	return a, nil
}

// restoreSettings applies the persisted language, mode and source and
// falls back to whichever mode has a model.
func (a *App) restoreSettings(engine *classify.Engine) gesture.Source {
	mode := a.cfg.Mode
	if a.store != nil {
		mode = a.loadSettings(mode)
	}
	if !engine.StaticAvailable() && engine.SequenceAvailable() {
		mode = gesture.SourceWord
	}
	if !engine.SequenceAvailable() && engine.StaticAvailable() {
		mode = gesture.SourceLetter
	}
	return mode
}

func (a *App) loadSettings(mode gesture.Source) gesture.Source {
	settings := a.store.Settings()
	if lang := settings.GetDefault(store.SettingLanguage, ""); supportedLanguage(lang) {
		a.lang = lang
	}
	if name := settings.GetDefault(store.SettingMode, ""); name != "" {
		if m, err := gesture.ParseSource(name); err == nil && (m == gesture.SourceLetter || m == gesture.SourceWord) {
			mode = m
		}
	}
	if a.cfg.NetworkURL == "" {
		a.cfg.NetworkURL = settings.GetDefault(store.SettingSourceURL, "")
	}
	return mode
}

// Start opens the camera and starts the loop. A missing camera is not an
// error: the loop runs in degraded mode until a source is selected.
// Starting a stopped App returns ErrStopped.
func (a *App) Start(ctx context.Context) error {
	if a.stopped.Load() {
		return ErrStopped
	}
	if !a.running.CompareAndSwap(false, true) {
		return nil
	}
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.openSource(a.ctx)

	if a.speaker != nil {
		a.speaker.Start(a.ctx)
	}

	a.wg.Add(2)
	go a.deliverEvents()
	go a.loop()

	a.log.Info("recognition loop started", "fps", a.cfg.TargetFPS, "mode", a.rec.Mode().String(), "language", a.lang)
	return nil
}

// Stop halts the loop and releases the camera, the detector and the
// notifier. It is safe to call more than once.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		a.stopped.Store(true)
		if a.cancel != nil {
			a.cancel()
		}
		a.wg.Wait()
		if a.speaker != nil {
			a.speaker.Close()
		}
		a.capture.Release()
		a.motion.Close()
		if err := a.rec.Close(); err != nil {
			a.log.Warn("failed to close detector", "error", err)
		}
		if err := a.notifier.Close(); err != nil {
			a.log.Warn("failed to close notifier", "error", err)
		}
		a.running.Store(false)
		a.log.Info("recognition loop stopped")
	})
}

// Snapshot returns the latest published state.
func (a *App) Snapshot() *Snapshot {
	return a.snapshot.Load()
}

// Frame returns the latest preview frame as JPEG and its sequence number.
// data is nil until the first frame was read.
func (a *App) Frame() (data []byte, seq uint64) {
	f := a.frame.Load()
	if f == nil {
		return nil, 0
	}
	return f.data, f.seq
}

// Gallery returns the image gallery, which may be nil.
func (a *App) Gallery() *gallery.Gallery {
	return a.gallery
}

// Store returns the store, which may be nil.
func (a *App) Store() *store.Store {
	return a.store
}

// SetMode switches between letters and words.
func (a *App) SetMode(ctx context.Context, mode gesture.Source) error {
	return a.do(ctx, func() error {
		if mode == gesture.SourceLetter || mode == gesture.SourceWord {
			if !a.rec.Available(mode) {
				return fmt.Errorf("%s mode: %w", mode, classify.ErrModelUnavailable)
			}
		}
		if err := a.rec.SetMode(mode); err != nil {
			return err
		}
		a.saveSetting(store.SettingMode, mode.String())
		return nil
	})
}

// ToggleMode switches to the other mode.
func (a *App) ToggleMode(ctx context.Context) error {
	next := gesture.SourceWord
	if s := a.Snapshot(); s != nil && s.Mode == gesture.SourceWord.String() {
		next = gesture.SourceLetter
	}
	return a.SetMode(ctx, next)
}

// SetLanguage changes the render language.
func (a *App) SetLanguage(ctx context.Context, lang string) error {
	if !supportedLanguage(lang) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return a.do(ctx, func() error {
		a.lang = lang
		a.saveSetting(store.SettingLanguage, lang)
		return nil
	})
}

// DeleteLast removes the newest token.
func (a *App) DeleteLast(ctx context.Context) error {
	return a.do(ctx, func() error {
		a.phrase.DeleteLast()
		return nil
	})
}

// AddSpace appends a word boundary.
func (a *App) AddSpace(ctx context.Context) error {
	return a.do(ctx, func() error {
		a.phrase.AddSpace()
		return nil
	})
}

// Clear empties the phrase.
func (a *App) Clear(ctx context.Context) error {
	return a.do(ctx, func() error {
		a.phrase.Clear()
		a.lastToken = nil
		return nil
	})
}

// SetPaused stops or restarts feeding frames to the recognizer. The camera
// stays open and the preview keeps updating.
func (a *App) SetPaused(ctx context.Context, paused bool) error {
	return a.do(ctx, func() error {
		a.userPaused = paused
		return nil
	})
}

// TogglePause flips the user pause.
func (a *App) TogglePause(ctx context.Context) error {
	return a.do(ctx, func() error {
		a.userPaused = !a.userPaused
		return nil
	})
}

// Speak sends the phrase in the current language to the synthesizer,
// records it and announces it. It returns the utterance ID.
func (a *App) Speak(ctx context.Context) (string, error) {
	var id string
	err := a.do(ctx, func() error {
		var err error
		id, err = a.speak()
		return err
	})
	return id, err
}

// Listen starts a speech-to-gesture cycle. It returns as soon as the
// listener is running; the result appears in later snapshots.
func (a *App) Listen(ctx context.Context) error {
	return a.do(ctx, a.startListen)
}

// Simulate shows text as if it had been heard.
func (a *App) Simulate(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("text is required")
	}
	return a.do(ctx, func() error {
		a.clearDisplay()
		a.showText(text)
		return nil
	})
}

// UseLocal releases the current source and scans local devices.
func (a *App) UseLocal(ctx context.Context) error {
	return a.do(ctx, func() error {
		if _, err := a.capture.UseLocal(a.ctx); err != nil {
			a.setNotice("no local camera found")
			return err
		}
		a.sourceChanged("")
		return nil
	})
}

// UseNetwork releases the current source and opens a network stream.
func (a *App) UseNetwork(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("url is required")
	}
	return a.do(ctx, func() error {
		if _, err := a.capture.UseNetwork(a.ctx, url); err != nil {
			a.setNotice("network camera unreachable")
			return err
		}
		a.sourceChanged(url)
		return nil
	})
}

// Reconnect re-opens the configured source, leaving degraded mode.
func (a *App) Reconnect(ctx context.Context) error {
	return a.do(ctx, func() error {
		if err := a.openSource(a.ctx); err != nil {
			return err
		}
		a.motion.Reset()
		a.rec.Reset()
		return nil
	})
}

// ReloadLexicon re-reads translations from the store, e.g. after an import.
func (a *App) ReloadLexicon(ctx context.Context) error {
	if a.store == nil {
		return errors.New("no store configured")
	}
	lex, err := a.store.Lexicon()
	if err != nil {
		return fmt.Errorf("load lexicon: %w", err)
	}
	return a.do(ctx, func() error {
		a.lexicon = lex
		a.phrase.SetTranslator(lex)
		if a.gallery != nil {
			a.gallery.Reindex()
		}
		a.log.Info("lexicon reloaded", "entries", lex.Len())
		return nil
	})
}

// do runs fn on the loop and waits for it. The snapshot is republished
// before do returns so callers observe the effect.
func (a *App) do(ctx context.Context, fn func() error) error {
	if !a.running.Load() {
		return ErrNotRunning
	}

	errc := make(chan error, 1)
	cmd := func() {
		err := fn()
		a.publish(a.now())
		errc <- err
	}

	select {
	case a.commands <- cmd:
	case <-a.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-a.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands an auxiliary result to the loop.
func (a *App) post(res any) {
	select {
	case a.results <- res:
	case <-a.done:
	}
}

// openSource opens the configured network stream or scans local devices.
func (a *App) openSource(ctx context.Context) error {
	var err error
	if a.cfg.NetworkURL != "" {
		_, err = a.capture.UseNetwork(ctx, a.cfg.NetworkURL)
	} else {
		_, err = a.capture.Acquire(ctx)
	}
	if err != nil {
		a.log.Warn("no camera, running degraded", "error", err)
		a.setNotice("no camera available")
	}
	return err
}

func (a *App) sourceChanged(url string) {
	a.cfg.NetworkURL = url
	a.motion.Reset()
	a.rec.Reset()
	a.saveSetting(store.SettingSourceURL, url)
}

func (a *App) speak() (string, error) {
	text := a.phrase.Render(a.lang)
	if text == "" {
		return "", ErrEmptyPhrase
	}
	if a.speaker == nil {
		a.setNotice("speech synthesis unavailable")
		return "", speech.ErrUnavailable
	}

	u := &store.Utterance{ID: uuid.NewString(), Text: text, Lang: a.lang, Tokens: a.phrase.Keys(), CreatedAt: a.now()}
	if !a.speaker.Enqueue(speech.Job{ID: u.ID, Text: text, Lang: a.lang}) {
		a.setNotice("speech queue full")
		return "", errors.New("speech queue full")
	}

	if a.store != nil {
		if err := a.store.Utterances().Create(u); err != nil {
			a.log.Warn("failed to record utterance", "id", u.ID, "error", err)
		}
	}
	a.emit(notify.NewSpeakEvent(text, a.lang, u.CreatedAt))
	a.log.Info("phrase queued for speech", "id", u.ID, "lang", a.lang, "length", len(text))
	return u.ID, nil
}

func (a *App) startListen() error {
	if a.listener == nil {
		a.setNotice("speech recognition unavailable")
		return speech.ErrUnavailable
	}
	if a.listening {
		return ErrBusy
	}

	a.clearDisplay()
	a.listening = true
	lang := a.lang
	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.ListenTimeout)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		text, err := a.listener.Listen(ctx, lang)
		a.post(listenResult{text: text, err: err})
	}()
	return nil
}

func (a *App) startFetch(key, text string) {
	a.fetching++
	ctx := a.ctx

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		path, err := a.fetcher.Fetch(ctx, key)
		a.post(fetchResult{key: key, text: text, path: path, err: err})
	}()
}

func (a *App) emit(ev notify.Event) {
	select {
	case a.events <- ev:
	default:
		a.log.Warn("notification dropped, queue full", "type", ev.Type, "id", ev.ID)
	}
}

// deliverEvents publishes notifications off the loop.
func (a *App) deliverEvents() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case ev := <-a.events:
			ctx, cancel := context.WithTimeout(a.ctx, notifyTimeout)
			if err := a.notifier.Notify(ctx, ev); err != nil {
				a.log.Debug("notification failed", "type", ev.Type, "id", ev.ID, "error", err)
			}
			cancel()
		}
	}
}

func (a *App) saveSetting(key, value string) {
	if a.store == nil {
		return
	}
	if err := a.store.Settings().Set(key, value); err != nil {
		a.log.Warn("failed to save setting", "key", key, "error", err)
	}
}

func (a *App) setNotice(msg string) {
	a.notice = msg
	a.noticeUntil = a.now().Add(noticeHold)
}

func supportedLanguage(lang string) bool {
	for _, l := range config.Languages {
		if l == lang {
			return true
		}
	}
	return false
}
