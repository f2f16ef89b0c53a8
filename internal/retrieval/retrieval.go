// Package retrieval drives the RAG routes: ingest a batch, fetch categorized
// insights for highlighted text, and search ranked snippets.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
)

const (
	pathIngest   = "/api/rag/ingest_pdfs"
	pathInsights = "/api/rag/insights"
	pathSearch   = "/api/rag/search_snippets"
)

const (
	MsgUploadFailed   = "Upload failed"
	MsgInsightsFailed = "Failed to fetch insights"
)

var (
	ErrEmptyHighlight = errors.New("empty highlight")
	ErrNoFiles        = errors.New("no files to ingest")
	// ErrSuperseded is returned when a newer request of the same mode was
	// issued before this one resolved. Its result is dropped.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// Snippet is one ranked search result.
type Snippet struct {
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Source is the document name recorded in the snippet metadata, if any.
func (s Snippet) Source() string {
	if s.Metadata == nil {
		return ""
	}
	if doc, ok := s.Metadata["doc"].(string); ok {
		return doc
	}
	return ""
}

type ingestResponse struct {
	Message string `json:"message"`
}

type searchResponse struct {
	Results []Snippet `json:"results"`
}

type mode int

const (
	modeIngest mode = iota
	modeInsights
	modeSearch
	modeCount
)

// Snapshot is the last accepted result of each mode.
type Snapshot struct {
	UploadMessage string
	Groups        []Group
	InsightsError string
	Snippets      []Snippet
	Loading       bool
	Searching     bool
}

// Controller runs the three query modes. Requests of one mode may overlap;
// only the latest issued request of a mode may write its result.
type Controller struct {
	api    *backend.Client
	source InsightSource
	log    *zap.Logger

	mu       sync.Mutex
	seq      [modeCount]uint64
	inflight [modeCount]int
	snap     Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

// WithInsightSource replaces the backend insights route.
func WithInsightSource(s InsightSource) Option {
	return func(c *Controller) {
		if s != nil {
			c.source = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

func New(api *backend.Client, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		source: NewBackendSource(api),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("module", "retrieval"))
	return c
}

// begin issues the next sequence number for m and clears its previous result.
func (c *Controller) begin(m mode) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq[m]++
	c.inflight[m]++
	switch m {
	case modeIngest:
		c.snap.UploadMessage = ""
	case modeInsights:
		c.snap.Groups = nil
		c.snap.InsightsError = ""
	case modeSearch:
		c.snap.Snippets = nil
	}
	c.setLoadingLocked()
	return c.seq[m]
}

// finishLocked releases the in-flight slot and reports whether seq is still current.
// The caller holds c.mu.
func (c *Controller) finishLocked(m mode, seq uint64) bool {
	c.inflight[m]--
	c.setLoadingLocked()
	return seq == c.seq[m]
}

func (c *Controller) setLoadingLocked() {
	c.snap.Loading = c.inflight[modeIngest] > 0 || c.inflight[modeInsights] > 0
	c.snap.Searching = c.inflight[modeSearch] > 0
}

// Ingest uploads files into the retrieval index and returns the backend message.
func (c *Controller) Ingest(ctx context.Context, parts []backend.Part) (string, error) {
	if len(parts) == 0 {
		return "", ErrNoFiles
	}
	seq := c.begin(modeIngest)

	var resp ingestResponse
	err := c.api.PostMultipart(ctx, pathIngest, "files", parts, &resp)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finishLocked(modeIngest, seq) {
		return "", ErrSuperseded
	}
	if err != nil {
		c.snap.UploadMessage = MsgUploadFailed
		c.log.Warn("ingest failed", zap.Int("files", len(parts)), zap.Error(err))
		return "", fmt.Errorf("ingest: %w", err)
	}
	c.snap.UploadMessage = resp.Message
	c.log.Info("ingested", zap.Int("files", len(parts)), zap.String("message", resp.Message))
	return resp.Message, nil
}

// Insights fetches categorized suggestions for highlighted text.
func (c *Controller) Insights(ctx context.Context, highlight string) ([]Group, error) {
	if strings.TrimSpace(highlight) == "" {
		return nil, ErrEmptyHighlight
	}
	seq := c.begin(modeInsights)

	groups, err := c.source.Insights(ctx, highlight)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finishLocked(modeInsights, seq) {
		return nil, ErrSuperseded
	}
	if err != nil {
		c.snap.InsightsError = MsgInsightsFailed
		c.log.Warn("insights failed", zap.Error(err))
		return nil, fmt.Errorf("insights: %w", err)
	}
	c.snap.Groups = groups
	return cloneGroups(groups), nil
}

// Search returns snippets ranked by the backend. A failed search yields an
// empty result rather than an error message.
func (c *Controller) Search(ctx context.Context, highlight string) ([]Snippet, error) {
	if strings.TrimSpace(highlight) == "" {
		return nil, ErrEmptyHighlight
	}
	seq := c.begin(modeSearch)

	results, err := FetchSnippets(ctx, c.api, highlight)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finishLocked(modeSearch, seq) {
		return nil, ErrSuperseded
	}
	if err != nil {
		c.snap.Snippets = []Snippet{}
		c.log.Warn("search failed", zap.Error(err))
		return []Snippet{}, fmt.Errorf("search: %w", err)
	}
	c.snap.Snippets = results
	return append([]Snippet{}, results...), nil
}

// FetchSnippets calls the search route without touching any controller state.
func FetchSnippets(ctx context.Context, api *backend.Client, highlight string) ([]Snippet, error) {
	var resp searchResponse
	if err := api.PostJSON(ctx, pathSearch, highlightRequest{Highlight: highlight}, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []Snippet{}
	}
	return resp.Results, nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap
	s.Groups = cloneGroups(s.Groups)
	if s.Snippets != nil {
		s.Snippets = append([]Snippet{}, s.Snippets...)
	}
	return s
}

func cloneGroups(in []Group) []Group {
	if in == nil {
		return nil
	}
	out := make([]Group, len(in))
	for i, g := range in {
		out[i] = Group{Label: g.Label, Items: append([]string{}, g.Items...)}
	}
	return out
}
