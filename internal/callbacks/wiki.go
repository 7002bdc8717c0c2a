// Package callbacks holds the built-in hooks that can be enabled from
// configuration.
package callbacks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	model "github.com/zhouzirui/z-relay/backend/internal/model/chat"
	"github.com/zhouzirui/z-relay/backend/internal/service/callback"
)

const (
	WikiSearchID = "wiki-search"

	defaultWikiTimeout = 10 * time.Second
	wikiPageURL        = "https://en.wikipedia.org/wiki?curid=%d"
)

// WikiSearch augments the current turn with Wikipedia search results before
// it reaches the model.
type WikiSearch struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewWikiSearch targets the MediaWiki API at endpoint. A nil client gets a
// default with a timeout.
func NewWikiSearch(endpoint string, client *http.Client, logger *slog.Logger) *WikiSearch {
	if client == nil {
		client = &http.Client{Timeout: defaultWikiTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WikiSearch{
		endpoint: endpoint,
		client:   client,
		logger:   logger.With("component", "callbacks", "callback_id", WikiSearchID),
	}
}

// Registration returns the pre-phase hook. It only runs for unpaired
// sessions, so relayed traffic between people is never rewritten.
func (w *WikiSearch) Registration() callback.Registration {
	return callback.HistoryTransform(WikiSearchID, callback.PhasePre, callback.AudienceOperatorOnly, w.Transform)
}

type wikiResponse struct {
	Query struct {
		Search []wikiResult `json:"search"`
	} `json:"query"`
}

type wikiResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	PageID  int    `json:"pageid"`
}

// Transform rewrites the last turn of history. A non-200 answer leaves the
// history untouched.
func (w *WikiSearch) Transform(ctx context.Context, history []model.Turn) ([]model.Turn, error) {
	if len(history) == 0 {
		return history, nil
	}
	last := &history[len(history)-1]

	results, err := w.search(ctx, last.Content)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return history, nil
	}

	last.Content = augment(last.Content, results)
	return history, nil
}

func (w *WikiSearch) search(ctx context.Context, query string) ([]wikiResult, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"format":   {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build wiki request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wiki search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		w.logger.Warn("wiki search rejected", "status", resp.StatusCode, "body", string(body))
		return nil, nil
	}

	var payload wikiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode wiki response: %w", err)
	}
	return payload.Query.Search, nil
}

func augment(content string, results []wikiResult) string {
	var b strings.Builder
	b.WriteString(content)
	b.WriteString("\n\nHere is some extra information about the topic from Wikipedia which you can use to answer the user's question:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\nTitle: %s\nSnippet: %s\nPage ID: %d\nEnglish URL: "+wikiPageURL+"\n", r.Title, r.Snippet, r.PageID, r.PageID)
	}
	b.WriteString("\nPlease use this information to answer the user's question and give references to the sources.\n")
	return b.String()
}
