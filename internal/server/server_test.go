package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/ishara/internal/app"
	"github.com/ayusman/ishara/internal/server/api"
	"github.com/ayusman/ishara/internal/store"
)

// fakeApp serves snapshots and frames; commands it does not override
// panic through the nil embedded interface.
type fakeApp struct {
	api.Controller

	mu      sync.Mutex
	seq     uint64
	frame   []byte
	reloads int
}

func (f *fakeApp) Snapshot() *app.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &app.Snapshot{Seq: f.seq, Mode: "word", Language: "fr", Phrase: "Bonjour"}
}

func (f *fakeApp) Frame() ([]byte, uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.seq
}

func (f *fakeApp) ReloadLexicon(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *fakeApp) advance(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.frame = frame
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/nonexistent", "/api/state", "/api/gestures", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: expected a JSON error, got %s", path, ct)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>ishara</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("serves static files from configured directory", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != cssContent {
			t.Errorf("expected body %q, got %q", cssContent, rec.Body.String())
		}
	})

	t.Run("API routes win over static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Errorf("unexpected health response %d %q", rec.Code, rec.Body.String())
		}
	})
}

func TestServer_State(t *testing.T) {
	f := &fakeApp{seq: 7}
	s := New(Config{App: f})
	defer s.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var snap app.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Seq != 7 || snap.Phrase != "Bonjour" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestServer_Stream(t *testing.T) {
	f := &fakeApp{}
	f.advance([]byte("jpeg-1"))
	s := New(Config{App: f})
	defer s.Close()

	ts := httptest.NewServer(s)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "multipart/x-mixed-replace; boundary=frame" {
		t.Fatalf("Content-Type = %q", ct)
	}

	br := bufio.NewReader(resp.Body)
	readPart := func() string {
		t.Helper()
		var header []string
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				t.Fatalf("read part header: %v", err)
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" && len(header) > 0 {
				break
			}
			if line != "" {
				header = append(header, line)
			}
		}
		if header[0] != "--frame" || header[1] != "Content-Type: image/jpeg" {
			t.Fatalf("unexpected part header %q", header)
		}
		body := make([]byte, len("jpeg-1"))
		if _, err := io.ReadFull(br, body); err != nil {
			t.Fatalf("read part body: %v", err)
		}
		return string(body)
	}

	if got := readPart(); got != "jpeg-1" {
		t.Errorf("first part = %q, want jpeg-1", got)
	}
	f.advance([]byte("jpeg-2"))
	if got := readPart(); got != "jpeg-2" {
		t.Errorf("second part = %q, want jpeg-2", got)
	}
}

func TestServer_Events(t *testing.T) {
	f := &fakeApp{seq: 1}
	s := New(Config{App: f})
	defer s.Close()

	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	defer conn.Close()

	read := func() app.Snapshot {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var snap app.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read snapshot: %v", err)
		}
		return snap
	}

	if snap := read(); snap.Seq != 1 {
		t.Errorf("initial snapshot seq = %d, want 1", snap.Seq)
	}

	f.advance(nil)
	if snap := read(); snap.Seq != 2 {
		t.Errorf("pushed snapshot seq = %d, want 2", snap.Seq)
	}

	s.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected a going-away close after shutdown, got %v", err)
	}
}

func TestServer_LexiconWorkflow(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	f := &fakeApp{}
	srv := New(Config{App: f, Store: st})
	defer srv.Close()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	// 1. Import a translations document
	body := `{"3aslema": {"fr": "Bonjour", "en": "Hello", "emoji": "👋"}}`
	resp, err := client.Post(ts.URL+"/api/translations/import", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/translations/import error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if f.reloads != 1 {
		t.Errorf("lexicon reloads = %d, want 1", f.reloads)
	}

	// 2. List gestures
	resp, _ = client.Get(ts.URL + "/api/gestures")
	var listed struct {
		Gestures []struct {
			Key          string            `json:"key"`
			Translations map[string]string `json:"translations"`
		} `json:"gestures"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	resp.Body.Close()
	if len(listed.Gestures) != 1 || listed.Gestures[0].Translations["en"] != "Hello" {
		t.Fatalf("unexpected gestures %+v", listed.Gestures)
	}

	// 3. Delete it
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/gestures/3aslema", nil)
	resp, _ = client.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// 4. Verify deleted
	resp, _ = client.Get(ts.URL + "/api/gestures/3aslema")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	// 5. Utterance history is served from the same store
	resp, _ = client.Get(ts.URL + "/api/utterances")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/utterances status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)

		if s == nil {
			t.Fatal("expected non-nil server")
		}
		if s.config.StaticDir != cfg.StaticDir {
			t.Errorf("expected StaticDir %s, got %s", cfg.StaticDir, s.config.StaticDir)
		}
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{})
		var _ http.Handler = s
	})
}

func TestServer_ListenAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(Config{})

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}
