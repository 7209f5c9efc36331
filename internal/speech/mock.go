package speech

import (
	"context"
	"sync"
	"time"
)

// Utterance is one call recorded by MockEngine.
type Utterance struct {
	Text string
	Lang string
}

// MockEngine is an in-memory Synthesizer and Listener for testing.
type MockEngine struct {
	mu         sync.Mutex
	spoken     []Utterance
	transcript string
	speakErr   error
	listenErr  error
	delay      time.Duration
}

// NewMockEngine creates a MockEngine whose Listen returns transcript.
func NewMockEngine(transcript string) *MockEngine {
	return &MockEngine{transcript: transcript}
}

// SetTranscript changes what Listen returns.
func (m *MockEngine) SetTranscript(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcript = text
}

// SetErrors makes Speak and Listen fail.
func (m *MockEngine) SetErrors(speakErr, listenErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speakErr = speakErr
	m.listenErr = listenErr
}

// SetDelay makes Listen wait d or until ctx is done.
func (m *MockEngine) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Speak implements Synthesizer.
func (m *MockEngine) Speak(ctx context.Context, text, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speakErr != nil {
		return m.speakErr
	}
	m.spoken = append(m.spoken, Utterance{Text: text, Lang: lang})
	return nil
}

// Listen implements Listener.
func (m *MockEngine) Listen(ctx context.Context, lang string) (string, error) {
	m.mu.Lock()
	delay, text, err := m.delay, m.transcript, m.listenErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", ErrNothingHeard
	}
	return text, nil
}

// Spoken returns every utterance passed to Speak.
func (m *MockEngine) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Utterance, len(m.spoken))
	copy(out, m.spoken)
	return out
}
