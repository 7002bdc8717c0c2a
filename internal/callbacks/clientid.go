package callbacks

import (
	"context"
	"log/slog"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/service/callback"
)

const ClientIDLogID = "client-id-log"

// ClientIDLog logs the external client id of every session after routing.
func ClientIDLog(logger *slog.Logger) callback.Registration {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "callbacks", "callback_id", ClientIDLogID)

	return callback.SessionObserver(ClientIDLogID, callback.PhasePost, callback.AudienceAll,
		func(ctx context.Context, snapshot model.Snapshot) error {
			logger.InfoContext(ctx, "client id", "session_id", snapshot.ID, "client_id", snapshot.ClientID)
			return nil
		})
}
