package viewer

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/documents"
	"github.com/thywilljoshua/pdf-insights/internal/prefs"
)

type State int

const (
	NoSelection State = iota
	SDKLoading
	SDKReady
	SDKFailed
	LocalFallback
)

func (s State) String() string {
	switch s {
	case SDKLoading:
		return "sdk-loading"
	case SDKReady:
		return "sdk-ready"
	case SDKFailed:
		return "sdk-failed"
	case LocalFallback:
		return "local-fallback"
	default:
		return "no-selection"
	}
}

type scriptState int

const (
	scriptIdle scriptState = iota
	scriptLoading
	scriptReady
	scriptFailed
)

// IsLocalHost reports whether host is a development host, where the local
// frame is used until the SDK is ready.
func IsLocalHost(host string) bool {
	h := strings.ToLower(host)
	if i := strings.LastIndex(h, ":"); i != -1 && !strings.Contains(h[i:], "]") {
		h = h[:i]
	}
	return h == "localhost" || h == "127.0.0.1" || strings.Contains(h, ".local")
}

// Viewer shows at most one surface at a time for the selected document.
// It is safe for concurrent use.
type Viewer struct {
	docs   *documents.Client
	sdk    Renderer
	local  Renderer
	host   string
	log    *zap.Logger
	docURL func(documents.Document) string

	mu        sync.Mutex
	opts      Options
	script    scriptState
	settled   chan struct{}
	fallback  bool
	list      []documents.Document
	selection *documents.Document
	surface   Surface
	seq       uint64
}

type Option func(*Viewer)

func WithOptions(o Options) Option {
	return func(v *Viewer) { v.opts = o }
}

// WithHost sets the host the viewer is served from.
func WithHost(host string) Option {
	return func(v *Viewer) { v.host = host }
}

// WithDocumentURL rewrites the URL a surface loads the document from.
func WithDocumentURL(fn func(documents.Document) string) Option {
	return func(v *Viewer) { v.docURL = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(v *Viewer) {
		if l != nil {
			v.log = l
		}
	}
}

func New(docs *documents.Client, sdk, local Renderer, opts ...Option) *Viewer {
	v := &Viewer{
		docs:    docs,
		sdk:     sdk,
		local:   local,
		log:     zap.NewNop(),
		opts:    DefaultOptions(),
		settled: make(chan struct{}),
	}
	// nothing is loading until the first Mount
	close(v.settled)
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With(zap.String("module", "viewer"))
	return v
}

// Mount resets the viewer, loads the PDF list and starts loading the SDK in
// the background. The first PDF is selected.
func (v *Viewer) Mount(ctx context.Context) []documents.Document {
	v.mu.Lock()
	v.closeSurfaceLocked()
	v.selection = nil
	v.list = nil
	v.script = scriptLoading
	settled := make(chan struct{})
	v.settled = settled
	v.mu.Unlock()

	go v.loadScript(ctx, settled)

	pdfs := documents.FilterPDFs(v.docs.List(ctx))
	v.mu.Lock()
	v.list = pdfs
	if v.selection == nil && len(pdfs) > 0 {
		d := pdfs[0]
		v.selection = &d
	}
	v.mu.Unlock()

	v.rerender(ctx)
	return cloneList(pdfs)
}

func (v *Viewer) loadScript(ctx context.Context, settled chan struct{}) {
	err := v.sdk.Load(ctx)

	v.mu.Lock()
	if v.settled != settled {
		v.mu.Unlock()
		close(settled)
		return
	}
	if err != nil {
		v.script = scriptFailed
		v.log.Warn("embed sdk failed to load", zap.Error(err))
	} else {
		v.script = scriptReady
	}
	v.mu.Unlock()
	close(settled)

	v.rerender(ctx)
}

// ScriptSettled is closed when the SDK load started by the last Mount resolves,
// or when that load is superseded by a newer Mount. Before the first Mount it
// is already closed.
func (v *Viewer) ScriptSettled() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.settled
}

// Refresh reloads the PDF list. The selection is kept even when the selected
// document no longer exists.
func (v *Viewer) Refresh(ctx context.Context) []documents.Document {
	pdfs := documents.FilterPDFs(v.docs.List(ctx))
	v.mu.Lock()
	v.list = pdfs
	v.mu.Unlock()
	return cloneList(pdfs)
}

func (v *Viewer) Documents() []documents.Document {
	v.mu.Lock()
	defer v.mu.Unlock()
	return cloneList(v.list)
}

// Select shows doc on the active path.
func (v *Viewer) Select(ctx context.Context, doc documents.Document) {
	v.mu.Lock()
	v.selection = &doc
	v.mu.Unlock()
	v.rerender(ctx)
}

// SelectID selects a document from the current list.
func (v *Viewer) SelectID(ctx context.Context, id string) bool {
	v.mu.Lock()
	var found *documents.Document
	for i := range v.list {
		if v.list[i].ID == id {
			d := v.list[i]
			found = &d
			break
		}
	}
	v.mu.Unlock()
	if found == nil {
		return false
	}
	v.Select(ctx, *found)
	return true
}

func (v *Viewer) Selection() (documents.Document, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selection == nil {
		return documents.Document{}, false
	}
	return *v.selection, true
}

// SetLocalFallback is the explicit toggle between the SDK and the local frame.
func (v *Viewer) SetLocalFallback(ctx context.Context, on bool) {
	v.mu.Lock()
	changed := v.fallback != on
	v.fallback = on
	v.mu.Unlock()
	if changed {
		v.rerender(ctx)
	}
}

func (v *Viewer) LocalFallbackEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fallback
}

// SetTheme re-renders the current surface with the new theme.
func (v *Viewer) SetTheme(ctx context.Context, t prefs.Theme) {
	v.mu.Lock()
	changed := v.opts.Theme != t
	v.opts.Theme = t
	v.mu.Unlock()
	if changed {
		v.rerender(ctx)
	}
}

func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stateLocked()
}

func (v *Viewer) stateLocked() State {
	if v.localActiveLocked() {
		return LocalFallback
	}
	switch v.script {
	case scriptLoading:
		return SDKLoading
	case scriptReady:
		return SDKReady
	case scriptFailed:
		return SDKFailed
	default:
		return NoSelection
	}
}

func (v *Viewer) localActiveLocked() bool {
	if v.fallback {
		return true
	}
	return v.script != scriptIdle && v.script != scriptReady && IsLocalHost(v.host)
}

// Surface returns the visible surface, or nil.
func (v *Viewer) Surface() Surface {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.surface
}

// rerender replaces the visible surface to match the current path and
// selection. Renders that lose a race to a newer one are discarded.
func (v *Viewer) rerender(ctx context.Context) {
	v.mu.Lock()
	v.seq++
	seq := v.seq
	var r Renderer
	switch state := v.stateLocked(); {
	case v.selection == nil:
	case state == LocalFallback:
		r = v.local
	case state == SDKReady:
		r = v.sdk
	}
	if r == nil {
		v.closeSurfaceLocked()
		v.mu.Unlock()
		return
	}
	doc, opts := *v.selection, v.opts
	if v.docURL != nil {
		doc.URL = v.docURL(doc)
	}
	v.mu.Unlock()

	s, err := r.Render(ctx, doc, opts)
	if err != nil {
		v.log.Warn("render failed", zap.String("doc_id", doc.ID), zap.Error(err))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.seq {
		if s != nil {
			s.Close()
		}
		return
	}
	v.closeSurfaceLocked()
	v.surface = s
	if s != nil {
		v.log.Debug("rendered", zap.String("doc_id", doc.ID), zap.Stringer("path", s.Kind()))
	}
}

func (v *Viewer) closeSurfaceLocked() {
	if v.surface != nil {
		v.surface.Close()
		v.surface = nil
	}
}

// Close releases the visible surface.
func (v *Viewer) Close() {
	v.mu.Lock()
	v.seq++
	v.closeSurfaceLocked()
	v.mu.Unlock()
}

func cloneList(in []documents.Document) []documents.Document {
	out := make([]documents.Document, len(in))
	copy(out, in)
	return out
}
