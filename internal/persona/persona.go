// Package persona binds a declared role and goal to selected documents, runs
// the persona analysis, and suggests relevant snippets for selected text.
package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
	"github.com/thywilljoshua/pdf-insights/internal/documents"
	"github.com/thywilljoshua/pdf-insights/internal/thread"
)

const (
	pathAnalyze  = "/api/persona-analyze"
	pathSnippets = "/api/persona/snippets"
)

const (
	MsgWelcome         = "Hello! I'm your AI Persona Analysis Assistant. I can help you analyze documents based on your role and objectives. Let's start by understanding your persona and what you want to accomplish."
	MsgSelectDocuments = "Please select at least one document to analyze before we begin."
	MsgDescribeGoal    = "Please describe what you want to accomplish before we begin."
	MsgAnalysisFailed  = "I encountered an error starting the analysis. Please try again."
)

const (
	DefaultTopK     = 5
	DefaultDebounce = 300 * time.Millisecond
)

var (
	ErrNoDocuments = errors.New("no documents selected")
	ErrNoGoal      = errors.New("no goal described")
)

// Snippet is a section of the first selected document related to the
// current text selection.
type Snippet struct {
	SectionHeading string `json:"section_heading"`
	Snippet        string `json:"snippet"`
	PageNumber     int    `json:"page_number"`
	PDFID          string `json:"pdf_id"`
	SectionID      string `json:"section_id"`
}

// Page is the 1-based page for display.
func (s Snippet) Page() int { return s.PageNumber + 1 }

type snippetRequest struct {
	PDFID     string `json:"pdf_id"`
	Selection string `json:"selection"`
	Context   string `json:"context"`
	TopK      int    `json:"top_k"`
}

type analyzeRequest struct {
	DocIDs         []string `json:"doc_ids"`
	Persona        role     `json:"persona"`
	JobToBeDone    task     `json:"job_to_be_done"`
	JobDescription string   `json:"job_description"`
}

type role struct {
	Role string `json:"role"`
}

type task struct {
	Task string `json:"task"`
}

type analyzeResponse struct {
	PersonaAnalysis *thread.Analysis `json:"persona_analysis"`
}

// Controller owns the persona thread and the snippet query. Safe for
// concurrent use; Close stops any pending snippet query.
type Controller struct {
	api      *backend.Client
	library  *documents.Library
	thread   *thread.Thread
	log      *zap.Logger
	debounce time.Duration
	topK     int
	listener func([]Snippet)

	base   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	role      string
	goal      string
	docs      []string
	selection string
	snippets  []Snippet
	analyzing bool
	seq       uint64
	timer     *time.Timer
	inflight  context.CancelFunc
	closed    bool
}

type Option func(*Controller)

// WithDebounce sets how long input must be stable before snippets are fetched.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

func WithTopK(k int) Option {
	return func(c *Controller) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithSnippetListener is called with every accepted snippet result, including
// the empty result when the query inputs are cleared.
func WithSnippetListener(fn func([]Snippet)) Option {
	return func(c *Controller) { c.listener = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a controller whose thread starts with the welcome message.
func New(api *backend.Client, library *documents.Library, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		library:  library,
		thread:   thread.New(),
		log:      zap.NewNop(),
		debounce: DefaultDebounce,
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("module", "persona"))
	c.base, c.cancel = context.WithCancel(context.Background())
	c.thread.Bot(MsgWelcome)
	return c
}

func (c *Controller) Thread() *thread.Thread { return c.thread }

// Load refreshes the list of documents available for analysis.
func (c *Controller) Load(ctx context.Context) []documents.Document {
	return c.library.Refresh(ctx)
}

func (c *Controller) Documents() []documents.Document {
	return c.library.Documents()
}

// UploadDocuments uploads each file separately and refreshes the list once.
// Failures are returned per file; successful uploads are kept.
func (c *Controller) UploadDocuments(ctx context.Context, parts []backend.Part) []error {
	errs := c.library.UploadAll(ctx, parts)
	for _, err := range errs {
		c.log.Warn("document upload failed", zap.Error(err))
	}
	return errs
}

func (c *Controller) SetRole(r string) {
	c.mu.Lock()
	c.role = strings.TrimSpace(r)
	c.mu.Unlock()
	c.reschedule()
}

func (c *Controller) SetGoal(goal string) {
	c.mu.Lock()
	c.goal = goal
	c.mu.Unlock()
}

// SetDocuments replaces the selected document ids. Order matters: snippets are
// scoped to the first.
func (c *Controller) SetDocuments(ids []string) {
	c.mu.Lock()
	c.docs = append([]string(nil), ids...)
	c.mu.Unlock()
	c.reschedule()
}

// ToggleDocument adds id to the selection, or removes it if already selected.
func (c *Controller) ToggleDocument(id string) {
	c.mu.Lock()
	found := -1
	for i, d := range c.docs {
		if d == id {
			found = i
			break
		}
	}
	if found >= 0 {
		c.docs = append(c.docs[:found:found], c.docs[found+1:]...)
	} else {
		c.docs = append(c.docs, id)
	}
	c.mu.Unlock()
	c.reschedule()
}

// SetSelection records the text the user selected in the viewer.
func (c *Controller) SetSelection(text string) {
	c.mu.Lock()
	c.selection = strings.TrimSpace(text)
	c.mu.Unlock()
	c.reschedule()
}

func (c *Controller) SelectedDocuments() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.docs...)
}

func (c *Controller) Snippets() []Snippet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Snippet(nil), c.snippets...)
}

func (c *Controller) Analyzing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.analyzing
}

// reschedule supersedes any pending or in-flight snippet query. With both a
// selection and a document it schedules a new one after the debounce;
// otherwise results clear at once.
func (c *Controller) reschedule() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.seq++
	c.stopLocked()
	if c.selection == "" || len(c.docs) == 0 {
		had := len(c.snippets) > 0
		c.snippets = nil
		c.mu.Unlock()
		if had {
			c.notify(nil)
		}
		return
	}
	seq := c.seq
	c.timer = time.AfterFunc(c.debounce, func() { c.fetch(seq) })
	c.mu.Unlock()
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.inflight != nil {
		c.inflight()
		c.inflight = nil
	}
}

func (c *Controller) fetch(seq uint64) {
	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.base)
	c.inflight = cancel
	req := snippetRequest{
		PDFID:     c.docs[0],
		Selection: c.selection,
		Context:   c.role,
		TopK:      c.topK,
	}
	c.mu.Unlock()
	defer cancel()

	var out []Snippet
	err := c.api.PostJSON(ctx, pathSnippets, req, &out)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.inflight = nil
	if err != nil {
		c.log.Debug("snippet query failed", zap.String("pdf_id", req.PDFID), zap.Error(err))
		out = nil
	}
	c.snippets = out
	result := append([]Snippet(nil), out...)
	c.mu.Unlock()
	c.notify(result)
}

func (c *Controller) notify(s []Snippet) {
	if c.listener != nil {
		c.listener(s)
	}
}

// StartAnalysis validates the inputs and runs the persona analysis, recording
// the exchange in the thread. It returns the bot message that was appended.
func (c *Controller) StartAnalysis(ctx context.Context) (thread.Message, error) {
	c.mu.Lock()
	docs := append([]string(nil), c.docs...)
	r, goal := c.role, strings.TrimSpace(c.goal)
	c.mu.Unlock()

	if len(docs) == 0 {
		return c.thread.Warn(MsgSelectDocuments), ErrNoDocuments
	}
	if goal == "" {
		return c.thread.Warn(MsgDescribeGoal), ErrNoGoal
	}

	c.thread.User(fmt.Sprintf("I want to analyze %d document(s) as a %s. My goal is: %s", len(docs), r, goal))
	c.setAnalyzing(true)
	defer c.setAnalyzing(false)

	var resp analyzeResponse
	err := c.api.PostJSON(ctx, pathAnalyze, analyzeRequest{
		DocIDs:         docs,
		Persona:        role{Role: r},
		JobToBeDone:    task{Task: goal},
		JobDescription: goal,
	}, &resp)
	if err != nil {
		c.log.Warn("persona analysis failed", zap.Int("docs", len(docs)), zap.Error(err))
		return c.thread.Fail(MsgAnalysisFailed), fmt.Errorf("persona analysis: %w", err)
	}

	msg := c.thread.Append(thread.Message{
		Role:     thread.RoleBot,
		Content:  fmt.Sprintf("Great! I've started analyzing your documents with a focus on your %s persona. Here are your insights:", r),
		Analysis: resp.PersonaAnalysis,
	})
	c.log.Info("persona analysis complete", zap.Int("docs", len(docs)), zap.String("role", r))
	return msg, nil
}

func (c *Controller) setAnalyzing(v bool) {
	c.mu.Lock()
	c.analyzing = v
	c.mu.Unlock()
}

// Close cancels pending snippet work. The controller must not be used after.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.seq++
	c.stopLocked()
	c.mu.Unlock()
	c.cancel()
}
