package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// ErrNoCamera is returned when no candidate source delivered a frame.
var ErrNoCamera = errors.New("no camera available")

// Manager defaults.
const (
	DefaultMaxIndex         = 3
	DefaultTestReads        = 2
	DefaultFailureThreshold = 30
)

// ManagerConfig controls probing and recovery.
type ManagerConfig struct {
	// Backends is the scan order. Defaults to PlatformBackends(runtime.GOOS).
	Backends []Backend
	// MaxIndex bounds the device indices tried per backend (0..MaxIndex-1).
	MaxIndex int
	// Settle is the wait between opening a device and the test read.
	Settle time.Duration
	// TestReads is how many reads a candidate gets to produce a frame.
	TestReads int
	// FailureThreshold is the number of consecutive failed reads that
	// triggers a reconnect cycle.
	FailureThreshold int
	// ReconnectDelay is the wait between releasing and re-acquiring.
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

func (c *ManagerConfig) applyDefaults() {
	if len(c.Backends) == 0 {
		c.Backends = PlatformBackends(runtime.GOOS)
	}
	if c.MaxIndex <= 0 {
		c.MaxIndex = DefaultMaxIndex
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	if c.TestReads <= 0 {
		c.TestReads = DefaultTestReads
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.ReconnectDelay < 0 {
		c.ReconnectDelay = 0
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is the currently open source.
type Session struct {
	ID       string    `json:"id"`
	Source   Source    `json:"source"`
	FPS      int       `json:"fps"` // rate requested from the device
	OpenedAt time.Time `json:"opened_at"`
}

// Stats describes the manager state.
type Stats struct {
	Reads               uint64   `json:"reads"`
	Failures            uint64   `json:"failures"`
	Reconnects          uint64   `json:"reconnects"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	Degraded            bool     `json:"degraded"`
	Session             *Session `json:"session,omitempty"`
}

// Manager owns at most one open video source. It scans for a working
// device, absorbs transient read failures and reconnects after a run of
// failures. When a reconnect fails it enters degraded mode and stops
// touching devices until a source is acquired explicitly.
type Manager struct {
	cfg    ManagerConfig
	opener Opener
	log    *slog.Logger

	mu      sync.Mutex
	dev     Camera
	session *Session
	wantURL string // non-empty when the requested source is a network stream

	consecutive int
	degraded    bool
	reads       uint64
	failures    uint64
	reconnects  uint64
}

// NewManager creates a Manager. Nothing is opened until Acquire.
func NewManager(opener Opener, cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:    cfg,
		opener: opener,
		log:    cfg.Logger,
	}
}

// Acquire releases any open source and scans local devices in backend
// and index order. The first device that delivers a frame wins; every
// other opened candidate is released.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wantURL = ""
	return m.acquireLocked(ctx)
}

// UseLocal switches to local probing. Equivalent to Acquire.
func (m *Manager) UseLocal(ctx context.Context) (*Session, error) {
	return m.Acquire(ctx)
}

// UseNetwork releases the current source and opens the stream at url.
func (m *Manager) UseNetwork(ctx context.Context, url string) (*Session, error) {
	if url == "" {
		return nil, errors.New("empty stream url")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.wantURL = url
	return m.acquireLocked(ctx)
}

// Release closes the current source. It is safe to call repeatedly.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
}

// Read returns the next frame. Failures are absorbed: the caller only sees
// ok == false. The caller must close a returned frame.
func (m *Manager) Read(ctx context.Context) (*gocv.Mat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.degraded || m.dev == nil {
		return nil, false
	}
	if !m.dev.IsOpen() {
		// The handle is gone; counting failures on it would only delay the reconnect.
		m.log.Warn("camera handle closed", "source", m.session.Source.String())
		m.reconnectLocked(ctx)
		return nil, false
	}

	frame, err := m.dev.ReadFrame()
	if err == nil && frame != nil && !frame.Empty() {
		m.reads++
		m.consecutive = 0
		return frame, true
	}
	if frame != nil {
		frame.Close()
	}

	m.failures++
	m.consecutive++
	m.log.Debug("frame read failed", "source", m.session.Source.String(), "consecutive", m.consecutive, "error", err)

	if m.consecutive < m.cfg.FailureThreshold {
		return nil, false
	}

	m.reconnectLocked(ctx)
	return nil, false
}

// Degraded reports whether the manager gave up after a failed reconnect.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Session returns the active session or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		Reads:               m.reads,
		Failures:            m.failures,
		Reconnects:          m.reconnects,
		ConsecutiveFailures: m.consecutive,
		Degraded:            m.degraded,
	}
	if m.session != nil {
		s := *m.session
		st.Session = &s
	}
	return st
}

func (m *Manager) reconnectLocked(ctx context.Context) {
	src := "none"
	if m.session != nil {
		src = m.session.Source.String()
	}
	m.log.Warn("camera read failing, reconnecting", "source", src, "consecutive", m.consecutive)

	m.releaseLocked()
	m.reconnects++

	if err := sleep(ctx, m.cfg.ReconnectDelay); err != nil {
		m.degraded = true
		return
	}

	if _, err := m.acquireLocked(ctx); err != nil {
		m.log.Error("camera reconnect failed, running degraded", "error", err)
		return
	}
	m.log.Info("camera reconnected", "source", m.session.Source.String())
}

// acquireLocked releases the current device and tries the requested source.
// On failure the manager is left degraded.
func (m *Manager) acquireLocked(ctx context.Context) (*Session, error) {
	m.releaseLocked()
	m.consecutive = 0

	var candidates []Source
	if m.wantURL != "" {
		candidates = []Source{{Kind: SourceNetwork, Backend: BackendAny, URL: m.wantURL}}
	} else {
		for _, b := range m.cfg.Backends {
			for i := 0; i < m.cfg.MaxIndex; i++ {
				candidates = append(candidates, Source{Kind: SourceLocal, Backend: b, Index: i})
			}
		}
	}

	for _, src := range candidates {
		if err := ctx.Err(); err != nil {
			m.degraded = true
			return nil, err
		}

		dev, err := m.opener.Open(src)
		if err != nil {
			m.log.Debug("camera candidate failed to open", "source", src.String(), "error", err)
			continue
		}

		if err := sleep(ctx, m.cfg.Settle); err != nil {
			dev.Close()
			m.degraded = true
			return nil, err
		}

		if !m.testRead(dev) {
			m.log.Debug("camera candidate delivered no frame", "source", src.String())
			dev.Close()
			continue
		}

		m.dev = dev
		m.degraded = false
		m.session = &Session{
			ID:       uuid.NewString(),
			Source:   src,
			FPS:      dev.FPS(),
			OpenedAt: time.Now(),
		}
		m.log.Info("camera acquired", "source", src.String(), "session", m.session.ID, "fps", m.session.FPS)

		s := *m.session
		return &s, nil
	}

	m.degraded = true
	if m.wantURL != "" {
		return nil, fmt.Errorf("%w: stream %s", ErrNoCamera, m.wantURL)
	}
	return nil, fmt.Errorf("%w: tried %d candidates", ErrNoCamera, len(candidates))
}

func (m *Manager) testRead(dev Camera) bool {
	for i := 0; i < m.cfg.TestReads; i++ {
		frame, err := dev.ReadFrame()
		if err != nil || frame == nil {
			continue
		}
		empty := frame.Empty()
		frame.Close()
		if !empty {
			return true
		}
	}
	return false
}

func (m *Manager) releaseLocked() {
	if m.dev != nil {
		if err := m.dev.Close(); err != nil {
			m.log.Warn("camera close failed", "error", err)
		}
		m.log.Info("camera released", "source", m.session.Source.String())
	}
	m.dev = nil
	m.session = nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
