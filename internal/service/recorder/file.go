package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
)

const maxTranscriptLine = 16 << 20

// FileRecorder appends one JSON line per recorded snapshot to a file created
// when the recorder starts.
type FileRecorder struct {
	mu     sync.Mutex
	file   *os.File
	now    func() time.Time
	logger *slog.Logger
}

// NewFileRecorder opens a fresh transcript file under dir.
func NewFileRecorder(dir string, logger *slog.Logger) (*FileRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript directory: %w", err)
	}

	stamp := strings.NewReplacer(":", "", "-", "").Replace(time.Now().UTC().Format("2006-01-02T15:04:05.000"))
	path := filepath.Join(dir, "chatHistory_"+stamp+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening transcript file: %w", err)
	}

	logger = logger.With("component", "recorder", "recorder", "file")
	logger.Info("transcript file opened", "path", path)
	return &FileRecorder{file: f, now: time.Now, logger: logger}, nil
}

// Path returns the file transcripts are appended to.
func (r *FileRecorder) Path() string {
	return r.file.Name()
}

func (r *FileRecorder) Record(_ context.Context, snapshot model.Snapshot) error {
	line, err := json.Marshal(newTranscript(snapshot, r.now()))
	if err != nil {
		return fmt.Errorf("encoding transcript: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write(line); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	return nil
}

// Load scans the transcript file and returns the last line recorded for id.
func (r *FileRecorder) Load(ctx context.Context, id string) (Transcript, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.file.Name())
	if err != nil {
		return Transcript{}, false, fmt.Errorf("opening transcript file: %w", err)
	}
	defer f.Close()

	var (
		last  Transcript
		found bool
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxTranscriptLine)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Transcript{}, false, err
		}
		var tr Transcript
		if err := json.Unmarshal(scanner.Bytes(), &tr); err != nil {
			r.logger.Warn("skipping unreadable transcript line", "error", err)
			continue
		}
		if tr.ID == id {
			last, found = tr, true
		}
	}
	if err := scanner.Err(); err != nil {
		return Transcript{}, false, fmt.Errorf("reading transcript file: %w", err)
	}
	return last, found, nil
}

func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
