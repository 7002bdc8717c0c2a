// Package session serves a read-only HTTP view of live sessions and their
// recorded transcripts.
package session

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/service/chat"
	"github.com/zhouzirui/z-relay/backend/internal/service/recorder"
	"github.com/zhouzirui/z-relay/backend/pkg/utils"
)

// TranscriptLoader reads back persisted transcripts.
type TranscriptLoader interface {
	Load(ctx context.Context, id string) (recorder.Transcript, bool, error)
}

// Handler serves session queries.
type Handler struct {
	registry    *chat.Registry
	transcripts TranscriptLoader
}

// New returns a handler over registry. transcripts may be nil.
func New(registry *chat.Registry, transcripts TranscriptLoader) *Handler {
	return &Handler{registry: registry, transcripts: transcripts}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleList)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Get("/sessions/{sessionID}/transcript", h.handleTranscript)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List()
	infos := make([]model.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.registry.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, s.Snapshot())
}

// handleTranscript returns the last recorded transcript, which outlives the
// live session.
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		utils.RespondError(w, http.StatusNotImplemented, "transcript recording is disabled")
		return
	}
	tr, ok, err := h.transcripts.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "transcript not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, tr)
}
