// Package notify announces committed tokens and spoken phrases to other
// devices over MQTT.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/ishara/internal/gesture"
)

// Event types.
const (
	TypeCommit = "commit"
	TypeSpeak  = "speak"
)

// Event is the JSON payload published for every notification.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Key    string    `json:"key,omitempty"`
	Source string    `json:"source,omitempty"`
	Text   string    `json:"text,omitempty"`
	Lang   string    `json:"lang,omitempty"`
	At     time.Time `json:"at"`
}

// NewCommitEvent describes a token appended to the phrase.
func NewCommitEvent(tok gesture.Token) Event {
	return Event{
		ID:     uuid.NewString(),
		Type:   TypeCommit,
		Key:    tok.Key,
		Source: tok.Source.String(),
		At:     tok.At,
	}
}

// NewSpeakEvent describes a phrase sent to the synthesizer.
func NewSpeakEvent(text, lang string, at time.Time) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: TypeSpeak,
		Text: text,
		Lang: lang,
		At:   at,
	}
}

// Marshal encodes the event payload.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Notifier publishes events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Event) error { return nil }

// Close implements Notifier.
func (Nop) Close() error { return nil }
