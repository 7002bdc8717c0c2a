package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

// SQLiteRecorder upserts one row per session holding its latest transcript.
type SQLiteRecorder struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteRecorder opens (and if needed creates) the database at path.
func NewSQLiteRecorder(path string, logger *slog.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "recorder", "recorder", "sqlite")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now, logger: logger}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite recorder initialized", "path", path)
	return r, nil
}

func (r *SQLiteRecorder) createSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcripts (
			session_id TEXT PRIMARY KEY,
			client_id  TEXT NOT NULL DEFAULT '',
			name       TEXT NOT NULL DEFAULT '',
			history    TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_transcripts_client_id
			ON transcripts(client_id);
	`)
	return err
}

func (r *SQLiteRecorder) Record(ctx context.Context, snapshot model.Snapshot) error {
	history, err := json.Marshal(snapshot.History)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transcripts (session_id, client_id, name, history, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			history = excluded.history,
			updated_at = excluded.updated_at
	`, snapshot.ID, snapshot.ClientID, snapshot.Name, string(history), r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storing transcript %s: %w", snapshot.ID, err)
	}
	return nil
}

// Load returns the stored transcript for id. ok is false when none exists.
func (r *SQLiteRecorder) Load(ctx context.Context, id string) (Transcript, bool, error) {
	var (
		t          Transcript
		history    string
		updatedStr string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, client_id, name, history, updated_at
		FROM transcripts WHERE session_id = ?
	`, id).Scan(&t.ID, &t.ClientID, &t.Name, &history, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Transcript{}, false, nil
	}
	if err != nil {
		return Transcript{}, false, fmt.Errorf("loading transcript %s: %w", id, err)
	}

	t.Timestamp, err = time.Parse(time.RFC3339Nano, updatedStr)
	if err != nil {
		return Transcript{}, false, fmt.Errorf("parsing updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &t.History); err != nil {
		return Transcript{}, false, fmt.Errorf("decoding transcript %s: %w", id, err)
	}
	return t, true, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
