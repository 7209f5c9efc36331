// Package tray provides the system tray front-end of the Ishara recognizer.
package tray

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/ishara/internal/app"
	"github.com/ayusman/ishara/internal/gesture"
)

const (
	refreshInterval = 250 * time.Millisecond
	commandTimeout  = 2 * time.Second
	maxPhraseLabel  = 40
)

// Controller is the part of the recognition app driven from the tray.
type Controller interface {
	Snapshot() *app.Snapshot
	ToggleMode(ctx context.Context) error
	TogglePause(ctx context.Context) error
	Speak(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Tray mirrors the recognizer state in the system tray menu.
type Tray struct {
	app    Controller
	log    *slog.Logger
	onOpen func()
	onQuit func()
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuMode   *systray.MenuItem
	menuPause  *systray.MenuItem
	menuLast   *systray.MenuItem
	menuPhrase *systray.MenuItem
	lastSeq    uint64
}

// New creates a Tray driving c.
func New(c Controller, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{app: c, log: logger}
}

// OnOpen sets the callback for the "Open in browser" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray and blocks until Quit is clicked or ctx is
// cancelled. It must run on the main goroutine.
func (t *Tray) Run(ctx context.Context) {
	systray.Run(func() { t.onReady(ctx) }, func() {})
}

// onReady builds the menu and starts the refresh and click loops.
func (t *Tray) onReady(ctx context.Context) {
	systray.SetTitle("Ishara")
	systray.SetTooltip("Ishara sign recognition")

	t.menuMode = systray.AddMenuItem(modeLabel(nil), "Switch between letters and words")
	t.menuPause = systray.AddMenuItem(pauseLabel(nil), "Pause or resume recognition")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTokenLabel(nil), "Last committed token")
	t.menuLast.Disable()
	t.menuPhrase = systray.AddMenuItem(phraseLabel(nil), "Current phrase")
	t.menuPhrase.Disable()
	menuSpeak := systray.AddMenuItem("Speak phrase", "Read the phrase aloud")
	menuClear := systray.AddMenuItem("Clear phrase", "Empty the phrase")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in browser...", "Open the web interface")
	menuQuit := systray.AddMenuItem("Quit", "Quit Ishara")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				systray.Quit()
				return
			case <-ticker.C:
				t.refresh()
			case <-t.menuMode.ClickedCh:
				t.command("toggle mode", t.app.ToggleMode)
			case <-t.menuPause.ClickedCh:
				t.command("toggle pause", t.app.TogglePause)
			case <-menuSpeak.ClickedCh:
				t.command("speak", func(ctx context.Context) error {
					_, err := t.app.Speak(ctx)
					return err
				})
			case <-menuClear.ClickedCh:
				t.command("clear", t.app.Clear)
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// refresh copies a new snapshot into the menu titles.
func (t *Tray) refresh() {
	s := t.app.Snapshot()
	if s == nil || s.Seq == t.lastSeq {
		return
	}
	t.lastSeq = s.Seq

	t.menuMode.SetTitle(modeLabel(s))
	t.menuPause.SetTitle(pauseLabel(s))
	t.menuLast.SetTitle(lastTokenLabel(s))
	t.menuPhrase.SetTitle(phraseLabel(s))
	systray.SetTooltip(tooltip(s))
}

func (t *Tray) command(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		t.log.Warn("tray command failed", "command", name, "error", err)
	}
	t.refresh()
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

func modeLabel(s *app.Snapshot) string {
	if s == nil {
		return "Mode: -"
	}
	switch s.Mode {
	case gesture.SourceWord.String():
		return "Mode: words"
	case gesture.SourceLetter.String():
		return "Mode: letters"
	}
	return "Mode: " + s.Mode
}

func pauseLabel(s *app.Snapshot) string {
	switch {
	case s == nil:
		return "○ Starting"
	case s.Listening:
		return "◐ Listening"
	case s.Paused:
		return "○ Paused"
	case !s.Camera.Connected:
		return "○ No camera"
	}
	return "● Recognizing"
}

func lastTokenLabel(s *app.Snapshot) string {
	if s == nil || s.LastToken == nil {
		return "Last: none"
	}
	return fmt.Sprintf("Last: %s (%s)", s.LastToken.Key, s.LastToken.Source)
}

func phraseLabel(s *app.Snapshot) string {
	if s == nil || s.Phrase == "" {
		return "Phrase: (empty)"
	}
	return "Phrase: " + truncate(s.PhraseEmoji, maxPhraseLabel)
}

func tooltip(s *app.Snapshot) string {
	if s.Notice != "" {
		return "Ishara: " + s.Notice
	}
	return "Ishara sign recognition"
}

// truncate shortens s to at most n runes, keeping the end of the phrase.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
