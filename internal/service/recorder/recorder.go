// Package recorder persists conversation transcripts after each routed
// message. A recorder is plugged into the callback pipeline as a post-phase
// session observer.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zhouzirui/z-relay/backend/internal/config"
	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/service/callback"
)

// ObserverID is the callback id recorders register under.
const ObserverID = "transcript-recorder"

// Recorder stores the latest state of a session and reads it back.
type Recorder interface {
	Record(ctx context.Context, snapshot model.Snapshot) error
	// Load returns the last transcript recorded for id. ok is false when none
	// exists.
	Load(ctx context.Context, id string) (tr Transcript, ok bool, err error)
	Close() error
}

// Transcript is the persisted form of a snapshot.
type Transcript struct {
	ID        string       `json:"id"`
	ClientID  string       `json:"clientId,omitempty"`
	Name      string       `json:"name,omitempty"`
	History   []model.Turn `json:"chatHistory"`
	Timestamp time.Time    `json:"timestamp"`
}

func newTranscript(snapshot model.Snapshot, now time.Time) Transcript {
	return Transcript{
		ID:        snapshot.ID,
		ClientID:  snapshot.ClientID,
		Name:      snapshot.Name,
		History:   snapshot.History,
		Timestamp: now.UTC(),
	}
}

// Observer wraps rec as a post-phase hook for every session.
func Observer(rec Recorder) callback.Registration {
	return callback.SessionObserver(ObserverID, callback.PhasePost, callback.AudienceAll,
		func(ctx context.Context, snapshot model.Snapshot) error {
			return rec.Record(ctx, snapshot)
		})
}

// New builds the recorder selected by cfg. It returns nil for RecorderNone.
func New(ctx context.Context, cfg config.RecorderConfig, logger *slog.Logger) (Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Kind {
	case config.RecorderNone, "":
		return nil, nil
	case config.RecorderFile:
		return NewFileRecorder(cfg.FileDir, logger)
	case config.RecorderRedis:
		return NewRedisRecorder(ctx, cfg.RedisURL, cfg.RedisTTL, logger)
	case config.RecorderSQLite:
		return NewSQLiteRecorder(cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown recorder %q", cfg.Kind)
	}
}
