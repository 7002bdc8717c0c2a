package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/protocol"
	"github.com/zhouzirui/z-relay/backend/internal/service/chat"
	"github.com/zhouzirui/z-relay/backend/internal/service/recorder"
)

type nopConn struct{}

func (nopConn) Send(protocol.Outbound) error { return nil }

type fakeTranscripts struct {
	stored map[string]recorder.Transcript
	err    error
}

func (f fakeTranscripts) Load(_ context.Context, id string) (recorder.Transcript, bool, error) {
	if f.err != nil {
		return recorder.Transcript{}, false, f.err
	}
	tr, ok := f.stored[id]
	return tr, ok, nil
}

func newTestRouter(registry *chat.Registry) http.Handler {
	return newTestRouterWith(registry, nil)
}

func newTestRouterWith(registry *chat.Registry, transcripts TranscriptLoader) http.Handler {
	r := chi.NewRouter()
	New(registry, transcripts).RegisterRoutes(r)
	return r
}

func TestListSessions(t *testing.T) {
	registry := chat.NewRegistry(chat.Options{SystemMessage: "system"})
	first := registry.Create(nopConn{})
	second := registry.Create(nopConn{})
	second.SetName("Ada")

	rec := httptest.NewRecorder()
	newTestRouter(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Sessions []model.SessionInfo `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(body.Sessions))
	}
	if body.Sessions[0].ID != first.ID() || body.Sessions[1].Name != "Ada" {
		t.Fatalf("unexpected listing: %+v", body.Sessions)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	registry := chat.NewRegistry(chat.Options{})

	rec := httptest.NewRecorder()
	newTestRouter(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTranscript(t *testing.T) {
	registry := chat.NewRegistry(chat.Options{})
	transcripts := fakeTranscripts{stored: map[string]recorder.Transcript{
		"gone": {ID: "gone", History: []model.Turn{{Role: model.RoleUser, Content: "hi"}}},
	}}
	h := newTestRouterWith(registry, transcripts)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/gone/transcript", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tr recorder.Transcript
	if err := json.Unmarshal(rec.Body.Bytes(), &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tr.ID != "gone" || len(tr.History) != 1 || tr.History[0].Content != "hi" {
		t.Fatalf("unexpected transcript: %+v", tr)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/other/transcript", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTranscriptErrors(t *testing.T) {
	registry := chat.NewRegistry(chat.Options{})

	rec := httptest.NewRecorder()
	newTestRouter(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/x/transcript", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a recorder, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	newTestRouterWith(registry, fakeTranscripts{err: errors.New("boom")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/x/transcript", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
