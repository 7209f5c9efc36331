// Package speech connects the recognizer to text-to-speech and
// speech-to-text engines. The engines themselves run as helper plugins.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ayusman/ishara/internal/plugin"
)

// ErrUnavailable is returned when no engine is configured for a request.
var ErrUnavailable = errors.New("speech engine unavailable")

// ErrNothingHeard is returned when listening finished without text.
var ErrNothingHeard = errors.New("no speech recognized")

// Synthesizer speaks text aloud.
type Synthesizer interface {
	Speak(ctx context.Context, text, lang string) error
}

// Listener records speech and returns its transcript.
type Listener interface {
	Listen(ctx context.Context, lang string) (string, error)
}

// PluginEngine implements Synthesizer and Listener by running helper
// plugins discovered by a plugin.Manager.
type PluginEngine struct {
	plugins     *plugin.Manager
	exec        *plugin.Executor
	synthesizer string
	listener    string
	log         *slog.Logger
}

// NewPluginEngine creates a PluginEngine. synthesizer and listener name
// the preferred plugins; any plugin declaring the action is used when the
// preferred one is missing.
func NewPluginEngine(plugins *plugin.Manager, exec *plugin.Executor, synthesizer, listener string, logger *slog.Logger) *PluginEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginEngine{
		plugins:     plugins,
		exec:        exec,
		synthesizer: synthesizer,
		listener:    listener,
		log:         logger,
	}
}

// Speak implements Synthesizer.
func (e *PluginEngine) Speak(ctx context.Context, text, lang string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	p, err := e.find(plugin.ActionSpeak, e.synthesizer, lang)
	if err != nil {
		return err
	}

	resp, err := e.exec.Execute(ctx, p, &plugin.Request{Action: plugin.ActionSpeak, Text: text, Lang: lang})
	if err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("speak: %s", resp.Error)
	}

	e.log.Debug("spoke", "plugin", p.Manifest.Name, "lang", lang, "chars", len(text))
	return nil
}

// Listen implements Listener.
func (e *PluginEngine) Listen(ctx context.Context, lang string) (string, error) {
	p, err := e.find(plugin.ActionListen, e.listener, lang)
	if err != nil {
		return "", err
	}

	resp, err := e.exec.Execute(ctx, p, &plugin.Request{Action: plugin.ActionListen, Lang: lang})
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("listen: %s", resp.Error)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNothingHeard
	}
	return text, nil
}

func (e *PluginEngine) find(action, preferred, lang string) (*plugin.Plugin, error) {
	if e == nil || e.plugins == nil {
		return nil, ErrUnavailable
	}
	p, err := e.plugins.Find(action, preferred)
	if errors.Is(err, plugin.ErrPluginNotFound) {
		return nil, fmt.Errorf("%w: no %s plugin", ErrUnavailable, action)
	}
	if err != nil {
		return nil, err
	}
	if !p.Manifest.SupportsLanguage(lang) {
		return nil, fmt.Errorf("%w: %s does not handle %q", ErrUnavailable, p.Manifest.Name, lang)
	}
	return p, nil
}
