package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/ishara/internal/config"
	"github.com/ayusman/ishara/internal/gallery"
	"github.com/ayusman/ishara/internal/store"
)

// GestureHandler serves the lexicon: tokens, their translations and
// reference images.
type GestureHandler struct {
	store   *store.Store
	gallery *gallery.Gallery
	reload  func(context.Context) error
	log     *slog.Logger
}

// NewGestureHandler creates a GestureHandler. gallery and reload may be
// nil; reload is called after every lexicon change.
func NewGestureHandler(s *store.Store, g *gallery.Gallery, reload func(context.Context) error, logger *slog.Logger) *GestureHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GestureHandler{store: s, gallery: g, reload: reload, log: logger}
}

// Routes registers the handler on r.
func (h *GestureHandler) Routes(r chi.Router) {
	r.Get("/gestures", h.list)
	r.Get("/gestures/{key}", h.get)
	r.Delete("/gestures/{key}", h.delete)
	r.Get("/gestures/{key}/image", h.image)
	r.Put("/gestures/{key}/translations/{lang}", h.setTranslation)
	r.Delete("/gestures/{key}/translations/{lang}", h.deleteTranslation)
	r.Post("/translations/import", h.importTranslations)
}

type gestureResponse struct {
	Key          string            `json:"key"`
	Kind         string            `json:"kind"`
	Emoji        string            `json:"emoji,omitempty"`
	Translations map[string]string `json:"translations"`
	HasImage     bool              `json:"has_image"`
	UpdatedAt    string            `json:"updated_at"`
}

type listGesturesResponse struct {
	Gestures []gestureResponse `json:"gestures"`
}

type translationRequest struct {
	Text string `json:"text"`
}

type importResponse struct {
	Imported int  `json:"imported"`
	Reloaded bool `json:"reloaded"`
}

func (h *GestureHandler) toResponse(t *store.Token) (gestureResponse, error) {
	translations, err := h.store.Translations().ListByToken(t.Key)
	if err != nil {
		return gestureResponse{}, err
	}
	resp := gestureResponse{
		Key:          t.Key,
		Kind:         t.Kind.String(),
		Emoji:        t.Emoji,
		Translations: make(map[string]string, len(translations)),
		UpdatedAt:    t.UpdatedAt.Format(time.RFC3339),
	}
	for _, tr := range translations {
		resp.Translations[tr.Lang] = tr.Text
	}
	if h.gallery != nil {
		_, resp.HasImage = h.gallery.Lookup(t.Key)
	}
	return resp, nil
}

// list handles GET /api/gestures.
func (h *GestureHandler) list(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.store.Tokens().List()
	if err != nil {
		writeErr(w, err)
		return
	}

	out := listGesturesResponse{Gestures: make([]gestureResponse, 0, len(tokens))}
	for _, t := range tokens {
		resp, err := h.toResponse(t)
		if err != nil {
			writeErr(w, err)
			return
		}
		out.Gestures = append(out.Gestures, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// get handles GET /api/gestures/{key}.
func (h *GestureHandler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Tokens().GetByKey(chi.URLParam(r, "key"))
	if err != nil {
		writeErr(w, err)
		return
	}
	resp, err := h.toResponse(t)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// delete handles DELETE /api/gestures/{key}.
func (h *GestureHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Tokens().Delete(chi.URLParam(r, "key")); err != nil {
		writeErr(w, err)
		return
	}
	h.reloadLexicon(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// image handles GET /api/gestures/{key}/image.
func (h *GestureHandler) image(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := gallery.ValidKey(key); err != nil {
		writeErr(w, err)
		return
	}
	if h.gallery == nil {
		writeErr(w, gallery.ErrNoImage)
		return
	}
	path, ok := h.gallery.Lookup(key)
	if !ok {
		writeErr(w, gallery.ErrNoImage)
		return
	}
	w.Header().Set("Cache-Control", "max-age=3600")
	http.ServeFile(w, r, path)
}

// setTranslation handles PUT /api/gestures/{key}/translations/{lang}. The
// token is created when it does not exist yet.
func (h *GestureHandler) setTranslation(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	lang := chi.URLParam(r, "lang")
	if err := gallery.ValidKey(key); err != nil {
		writeErr(w, err)
		return
	}
	if !slices.Contains(config.Languages, lang) {
		writeErr(w, badRequest("unsupported language "+lang))
		return
	}

	var req translationRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeErr(w, badRequest("text is required"))
		return
	}

	t, err := h.store.Tokens().GetByKey(key)
	if errors.Is(err, store.ErrNotFound) {
		t = &store.Token{Key: key, Kind: store.KindForKey(key)}
		err = h.store.Tokens().Upsert(t)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.store.Translations().Set(key, lang, text); err != nil {
		writeErr(w, err)
		return
	}
	h.reloadLexicon(r.Context())

	resp, err := h.toResponse(t)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteTranslation handles DELETE /api/gestures/{key}/translations/{lang}.
func (h *GestureHandler) deleteTranslation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Translations().Delete(chi.URLParam(r, "key"), chi.URLParam(r, "lang")); err != nil {
		writeErr(w, err)
		return
	}
	h.reloadLexicon(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// importTranslations handles POST /api/translations/import with a
// translations document as body.
func (h *GestureHandler) importTranslations(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.ImportTranslations(r.Body)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: n, Reloaded: h.reloadLexicon(r.Context())})
}

func (h *GestureHandler) reloadLexicon(ctx context.Context) bool {
	if h.reload == nil {
		return false
	}
	if err := h.reload(ctx); err != nil {
		h.log.Warn("failed to reload lexicon", "error", err)
		return false
	}
	return true
}
