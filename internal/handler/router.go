package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/z-relay/backend/internal/handler/session"
	"github.com/zhouzirui/z-relay/backend/internal/handler/ws"
	"github.com/zhouzirui/z-relay/backend/internal/service/router"
	"github.com/zhouzirui/z-relay/backend/pkg/utils"
)

// Options configures the HTTP surface.
type Options struct {
	// OperatorPassword guards /api. Empty disables it.
	OperatorPassword string
	// Transcripts serves recorded transcripts. Nil when recording is off.
	Transcripts session.TranscriptLoader
}

// NewRouter wires HTTP routes to the session router.
func NewRouter(sessions *router.Router, opts Options, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	ws.New(sessions, logger).RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		registry := sessions.Registry()
		if err := registry.CheckPairingSymmetry(); err != nil {
			logger.Error("pairing invariant violated", "error", err)
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": registry.Len(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Logger)
		api.Use(requireOperator(opts.OperatorPassword))
		session.New(sessions.Registry(), opts.Transcripts).RegisterRoutes(api)
	})

	return r
}
