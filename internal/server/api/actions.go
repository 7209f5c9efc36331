package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/ishara/internal/capture"
	"github.com/ayusman/ishara/internal/gesture"
)

// ActionHandler exposes the recognition state and the user commands.
// Every command answers with the snapshot published after it ran.
type ActionHandler struct {
	app Controller
}

// NewActionHandler creates a new ActionHandler driving c.
func NewActionHandler(c Controller) *ActionHandler {
	return &ActionHandler{app: c}
}

// Routes registers the handler on r.
func (h *ActionHandler) Routes(r chi.Router) {
	r.Get("/state", h.state)

	r.Post("/phrase/delete", h.command(h.app.DeleteLast))
	r.Post("/phrase/space", h.command(h.app.AddSpace))
	r.Post("/phrase/clear", h.command(h.app.Clear))

	r.Post("/mode", h.setMode)
	r.Post("/language", h.setLanguage)
	r.Post("/pause", h.setPaused)
	r.Post("/speak", h.speak)
	r.Post("/listen", h.listen)
	r.Post("/simulate", h.simulate)

	r.Post("/source", h.setSource)
	r.Post("/camera/reconnect", h.command(h.app.Reconnect))
}

type modeRequest struct {
	// Mode is "letters" or "words"; empty toggles.
	Mode string `json:"mode"`
}

type languageRequest struct {
	Language string `json:"language"`
}

type pauseRequest struct {
	// Paused is the requested state; absent toggles.
	Paused *bool `json:"paused"`
}

type simulateRequest struct {
	Text string `json:"text"`
}

type sourceRequest struct {
	Kind string `json:"kind"` // local, network or esp32
	URL  string `json:"url,omitempty"`
	Host string `json:"host,omitempty"`
}

type speakResponse struct {
	ID    string `json:"id"`
	State any    `json:"state"`
}

func (h *ActionHandler) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}

// command adapts a parameterless app command to a handler.
func (h *ActionHandler) command(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Snapshot())
	}
}

func (h *ActionHandler) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
	}

	var err error
	if req.Mode == "" {
		err = h.app.ToggleMode(r.Context())
	} else {
		mode, perr := gesture.ParseSource(req.Mode)
		if perr != nil || mode == gesture.SourceSpace {
			writeErr(w, badRequest("mode must be letters or words"))
			return
		}
		err = h.app.SetMode(r.Context(), mode)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}

func (h *ActionHandler) setLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Language == "" {
		writeErr(w, badRequest("language is required"))
		return
	}
	if err := h.app.SetLanguage(r.Context(), req.Language); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}

func (h *ActionHandler) setPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
	}

	var err error
	if req.Paused == nil {
		err = h.app.TogglePause(r.Context())
	} else {
		err = h.app.SetPaused(r.Context(), *req.Paused)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}

func (h *ActionHandler) speak(w http.ResponseWriter, r *http.Request) {
	id, err := h.app.Speak(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, speakResponse{ID: id, State: h.app.Snapshot()})
}

func (h *ActionHandler) listen(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Listen(r.Context()); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.app.Snapshot())
}

func (h *ActionHandler) simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeErr(w, badRequest("text is required"))
		return
	}
	if err := h.app.Simulate(r.Context(), req.Text); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}

func (h *ActionHandler) setSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	var err error
	switch req.Kind {
	case "local":
		err = h.app.UseLocal(r.Context())
	case "network":
		if strings.TrimSpace(req.URL) == "" {
			writeErr(w, badRequest("url is required"))
			return
		}
		err = h.app.UseNetwork(r.Context(), req.URL)
	case "esp32":
		host := strings.TrimSpace(req.Host)
		if host == "" {
			writeErr(w, badRequest("host is required"))
			return
		}
		err = h.app.UseNetwork(r.Context(), capture.ESP32StreamURL(host))
	default:
		writeErr(w, badRequest("kind must be local, network or esp32"))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.Snapshot())
}
