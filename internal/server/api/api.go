// Package api provides the HTTP handlers of the Ishara control surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ayusman/ishara/internal/app"
	"github.com/ayusman/ishara/internal/capture"
	"github.com/ayusman/ishara/internal/classify"
	"github.com/ayusman/ishara/internal/gallery"
	"github.com/ayusman/ishara/internal/gesture"
	"github.com/ayusman/ishara/internal/speech"
	"github.com/ayusman/ishara/internal/store"
)

// Controller is the part of the recognition app driven over HTTP.
type Controller interface {
	Snapshot() *app.Snapshot
	SetMode(ctx context.Context, mode gesture.Source) error
	ToggleMode(ctx context.Context) error
	SetLanguage(ctx context.Context, lang string) error
	DeleteLast(ctx context.Context) error
	AddSpace(ctx context.Context) error
	Clear(ctx context.Context) error
	SetPaused(ctx context.Context, paused bool) error
	TogglePause(ctx context.Context) error
	Speak(ctx context.Context) (string, error)
	Listen(ctx context.Context) error
	Simulate(ctx context.Context, text string) error
	UseLocal(ctx context.Context) error
	UseNetwork(ctx context.Context, url string) error
	Reconnect(ctx context.Context) error
	ReloadLexicon(ctx context.Context) error
}

// errBadRequest marks request validation failures.
var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeErr maps err to a status code and writes it.
func writeErr(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, gallery.ErrNoImage):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, gallery.ErrInvalidKey),
		errors.Is(err, store.ErrInvalidTranslations),
		errors.Is(err, app.ErrUnsupportedLanguage),
		errors.Is(err, app.ErrInvalidMode),
		errors.Is(err, app.ErrEmptyPhrase):
		return http.StatusBadRequest
	case errors.Is(err, classify.ErrModelUnavailable), errors.Is(err, app.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotRunning),
		errors.Is(err, capture.ErrNoCamera),
		errors.Is(err, speech.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", errBadRequest, msg)
}
