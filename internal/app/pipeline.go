package app

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"gocv.io/x/gocv"

	"github.com/ayusman/ishara/internal/gesture"
	"github.com/ayusman/ishara/internal/notify"
	"github.com/ayusman/ishara/internal/speech"
)

// Results posted back to the loop by auxiliary goroutines.
type (
	listenResult struct {
		text string
		err  error
	}
	fetchResult struct {
		key  string
		text string
		path string
		err  error
	}
	spokenResult struct {
		outcome speech.Outcome
	}
)

// loop is the single writer of all recognition state.
//
// Each tick it:
//  1. advances the display queue
//  2. reads a frame (the manager absorbs failures and reconnects)
//  3. updates motion and the preview JPEG
//  4. feeds the recognizer unless paused
//  5. publishes a snapshot
//
// Commands and auxiliary results are handled between ticks.
func (a *App) loop() {
	defer a.wg.Done()
	defer close(a.done)

	ticker := time.NewTicker(time.Second / time.Duration(a.cfg.TargetFPS))
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case cmd := <-a.commands:
			cmd()
		case res := <-a.results:
			a.handleResult(res)
			a.publish(a.now())
		case <-ticker.C:
			a.tick(a.ctx)
		}
	}
}

func (a *App) tick(ctx context.Context) {
	now := a.now()
	a.advanceDisplay(now)

	paused := a.paused()
	if paused && !a.wasPaused {
		// Stale frames must not complete a word after the pause.
		a.rec.Reset()
	}
	a.wasPaused = paused

	frame, ok := a.capture.Read(ctx)
	if ok {
		a.processFrame(frame, paused)
		frame.Close()
	}

	a.publish(now)
}

func (a *App) processFrame(frame *gocv.Mat, paused bool) {
	_, a.motionPct = a.motion.Detect(frame)
	a.encodePreview(frame)

	if paused {
		return
	}

	tok, committed, err := a.rec.PushFrame(frame)
	if err != nil {
		a.extractErrs++
		if a.extractErrs == 1 {
			a.log.Warn("frame skipped", "error", err)
		} else {
			a.log.Debug("frame skipped", "error", err, "consecutive", a.extractErrs)
		}
		return
	}
	if a.extractErrs > 0 {
		a.log.Info("recognition recovered", "skipped_frames", a.extractErrs)
		a.extractErrs = 0
	}
	if committed {
		a.commit(tok)
	}
}

func (a *App) encodePreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		a.log.Debug("failed to encode preview", "error", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.frameSeq++
	a.frame.Store(&frameJPEG{seq: a.frameSeq, data: data})
}

func (a *App) commit(tok gesture.Token) {
	a.phrase.Append(tok)
	last := tok
	a.lastToken = &last
	a.emit(notify.NewCommitEvent(tok))
}

// paused reports whether frames bypass the recognizer: the user paused,
// a listen or fetch is running, or the display queue is showing something.
func (a *App) paused() bool {
	return a.userPaused || a.listening || a.fetching > 0 || a.current != nil
}

func (a *App) handleResult(res any) {
	switch r := res.(type) {
	case listenResult:
		a.listening = false
		a.handleHeard(r)
	case fetchResult:
		a.fetching--
		if r.err != nil {
			a.log.Info("no remote image, spelling instead", "key", r.key, "error", r.err)
			a.spell(r.text)
			return
		}
		a.queueDisplay(Display{Kind: DisplayImage, Key: r.key, Text: a.translate(r.key), Image: r.path, Hold: a.cfg.DisplayHold})
	case spokenResult:
		if r.outcome.Err != nil {
			a.setNotice("speech failed: " + r.outcome.Err.Error())
		}
	}
}

func (a *App) handleHeard(r listenResult) {
	switch {
	case r.err == nil:
		a.log.Info("speech recognized", "text", r.text)
		a.showText(r.text)
	case errors.Is(r.err, speech.ErrNothingHeard), errors.Is(r.err, context.DeadlineExceeded):
		a.queueDisplay(Display{Kind: DisplayNotice, Text: "nothing heard", Hold: a.cfg.MissHold})
	default:
		a.log.Warn("speech recognition failed", "error", r.err)
		a.queueDisplay(Display{Kind: DisplayNotice, Text: "speech recognition failed", Hold: a.cfg.MissHold})
	}
}

// showText displays the gesture for text: the reference image when the
// lexicon knows the word, otherwise the text spelled letter by letter.
func (a *App) showText(text string) {
	key, ok := a.lookup(text)
	if !ok {
		a.spell(text)
		return
	}
	if a.gallery != nil {
		if path, ok := a.gallery.Lookup(key); ok {
			a.queueDisplay(Display{Kind: DisplayImage, Key: key, Text: a.translate(key), Image: path, Hold: a.cfg.DisplayHold})
			return
		}
	}
	if a.fetcher.Enabled() {
		a.startFetch(key, text)
		return
	}
	a.spell(text)
}

// spell queues one item per letter and a shorter pause per space.
func (a *App) spell(text string) {
	var items []Display
	for _, r := range strings.ToUpper(strings.TrimSpace(text)) {
		switch {
		case unicode.IsSpace(r):
			items = append(items, Display{Kind: DisplaySpace, Hold: a.cfg.SpaceHold})
		case unicode.IsLetter(r):
			key := string(r)
			d := Display{Kind: DisplayLetter, Key: key, Text: key, Hold: a.cfg.LetterHold}
			if a.gallery != nil {
				d.Image, _ = a.gallery.Lookup(key)
			}
			items = append(items, d)
		}
	}
	if len(items) == 0 {
		items = append(items, Display{Kind: DisplayNotice, Text: "nothing to show", Hold: a.cfg.MissHold})
	}
	a.queueDisplay(items...)
}

func (a *App) queueDisplay(items ...Display) {
	a.queue = append(a.queue, items...)
	if a.current == nil {
		a.nextDisplay(a.now())
	}
}

func (a *App) nextDisplay(now time.Time) {
	if len(a.queue) == 0 {
		a.current = nil
		return
	}
	d := a.queue[0]
	a.queue = a.queue[1:]
	d.Until = now.Add(d.Hold)
	a.current = &d
}

func (a *App) advanceDisplay(now time.Time) {
	for a.current != nil && !now.Before(a.current.Until) {
		a.nextDisplay(now)
	}
}

func (a *App) clearDisplay() {
	a.current = nil
	a.queue = nil
}

func (a *App) lookup(text string) (string, bool) {
	if a.lexicon == nil {
		return "", false
	}
	return a.lexicon.Lookup(text)
}

func (a *App) translate(key string) string {
	if a.lexicon != nil {
		if s, ok := a.lexicon.Translate(key, a.lang); ok {
			return s
		}
	}
	return key
}

// publish stores a fresh Snapshot.
func (a *App) publish(now time.Time) {
	a.seq++

	fill, size := a.rec.WindowFill()
	stats := a.capture.Stats()

	s := &Snapshot{
		Seq:               a.seq,
		UpdatedAt:         now,
		Mode:              a.rec.Mode().String(),
		Language:          a.lang,
		StaticAvailable:   a.rec.Available(gesture.SourceLetter),
		SequenceAvailable: a.rec.Available(gesture.SourceWord),
		Phrase:            a.phrase.Render(a.lang),
		PhraseEmoji:       a.phrase.RenderWithEmoji(a.lang),
		Tokens:            a.phrase.Tokens(),
		History:           a.rec.History(),
		WindowFill:        fill,
		WindowSize:        size,
		Camera: CameraState{
			Connected:  stats.Session != nil,
			Degraded:   stats.Degraded,
			Session:    stats.Session,
			Reads:      stats.Reads,
			Failures:   stats.Failures,
			Reconnects: stats.Reconnects,
			StillFor:   a.motion.StillFor(now),
		},
		Motion:    a.motionPct,
		Paused:    a.paused(),
		Listening: a.listening,
		Queued:    len(a.queue),
	}
	if c, ok := a.rec.LastCandidate(); ok {
		s.Candidate = &c
	}
	if a.lastToken != nil {
		t := *a.lastToken
		s.LastToken = &t
	}
	if a.current != nil {
		d := *a.current
		s.Display = &d
	}
	if a.notice != "" && now.Before(a.noticeUntil) {
		s.Notice = a.notice
	}

	a.snapshot.Store(s)
}
