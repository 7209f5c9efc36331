package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/ishara/internal/store"
)

// defaultUtteranceLimit bounds GET /api/utterances without a limit.
const defaultUtteranceLimit = 50

// UtteranceHandler serves the history of spoken phrases.
type UtteranceHandler struct {
	store *store.Store
}

// NewUtteranceHandler creates a new UtteranceHandler.
func NewUtteranceHandler(s *store.Store) *UtteranceHandler {
	return &UtteranceHandler{store: s}
}

// Routes registers the handler on r.
func (h *UtteranceHandler) Routes(r chi.Router) {
	r.Get("/utterances", h.list)
	r.Get("/utterances/{id}", h.get)
	r.Delete("/utterances/{id}", h.delete)
}

type listUtterancesResponse struct {
	Utterances []*store.Utterance `json:"utterances"`
}

// list handles GET /api/utterances?limit=N, newest first.
func (h *UtteranceHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultUtteranceLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, badRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	utterances, err := h.store.Utterances().List(limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if utterances == nil {
		utterances = []*store.Utterance{}
	}
	writeJSON(w, http.StatusOK, listUtterancesResponse{Utterances: utterances})
}

// get handles GET /api/utterances/{id}.
func (h *UtteranceHandler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.Utterances().GetByID(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// delete handles DELETE /api/utterances/{id}.
func (h *UtteranceHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Utterances().Delete(chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
