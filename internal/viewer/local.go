package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sync"

	"rsc.io/pdf"

	"github.com/thywilljoshua/pdf-insights/internal/documents"
)

var errSurfaceClosed = errors.New("surface closed")

// Recovery actions offered when a frame fails to render.
const (
	ActionOpenExternally = "open-externally"
	ActionPrint          = "print"
)

type Action struct {
	Name   string
	Target string
}

type FrameState int

const (
	FrameLoading FrameState = iota
	FrameReady
	FrameError
)

func (s FrameState) String() string {
	switch s {
	case FrameReady:
		return "ready"
	case FrameError:
		return "error"
	default:
		return "loading"
	}
}

// FetchFunc returns the bytes of the document with the given id.
type FetchFunc func(ctx context.Context, id string) ([]byte, error)

// LocalRenderer shows documents in a plain frame. The bytes are fetched and
// opened first so a broken document is reported instead of an empty frame.
type LocalRenderer struct {
	fetch FetchFunc
}

func NewLocalRenderer(fetch FetchFunc) *LocalRenderer {
	return &LocalRenderer{fetch: fetch}
}

// Load is a no-op; the local path is always available.
func (r *LocalRenderer) Load(context.Context) error { return nil }

func (r *LocalRenderer) Render(ctx context.Context, doc documents.Document, opts Options) (Surface, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &Frame{
		doc:    doc,
		opts:   opts,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go f.load(ctx, r.fetch)
	return f, nil
}

// Frame is a local surface with its own loading state.
type Frame struct {
	doc    documents.Document
	opts   Options
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	state  FrameState
	pages  int
	err    error
	closed bool
}

func (f *Frame) load(ctx context.Context, fetch FetchFunc) {
	defer close(f.done)
	var (
		pages int
		err   error
	)
	if fetch == nil {
		err = errors.New("no document source")
	} else {
		var data []byte
		data, err = fetch(ctx, f.doc.ID)
		if err == nil {
			pages, err = countPages(data)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	if err != nil {
		f.state, f.err = FrameError, err
		return
	}
	f.state, f.pages = FrameReady, pages
}

func countPages(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	n = doc.NumPage()
	if n == 0 {
		return 0, errors.New("pdf has no pages")
	}
	return n, nil
}

func (f *Frame) Kind() SurfaceKind { return SurfaceFrame }
func (f *Frame) Document() documents.Document { return f.doc }

func (f *Frame) State() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Frame) Pages() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages
}

func (f *Frame) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Actions lists recovery actions. Only a failed frame has any.
func (f *Frame) Actions() []Action {
	if f.State() != FrameError {
		return nil
	}
	return []Action{
		{Name: ActionOpenExternally, Target: f.doc.URL},
		{Name: ActionPrint},
	}
}

// Wait blocks until the frame leaves FrameLoading.
func (f *Frame) Wait(ctx context.Context) (FrameState, error) {
	select {
	case <-f.done:
		return f.State(), nil
	case <-ctx.Done():
		return FrameLoading, ctx.Err()
	}
}

var framePage = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html class="{{.Theme}}">
<head><meta charset="utf-8"><title>{{.Doc.OriginalFilename}}</title></head>
<body>
<header>
  <strong>{{.Doc.OriginalFilename}}</strong>
  <span>{{.Size}} &bull; PDF Document{{if .Pages}} &bull; {{.Pages}} pages{{end}}</span>
  <a href="{{.Doc.URL}}" target="_blank">Download</a>
  <button onclick="window.print()">Print</button>
</header>
{{if eq .State "loading"}}<p>Loading PDF...</p>
{{else if eq .State "error"}}<section>
  <h4>PDF Loading Error</h4>
  <p>Failed to load PDF</p>
  <a href="{{.Doc.URL}}" target="_blank">Open in New Tab</a>
  <button onclick="window.print()">Print</button>
</section>
{{else}}<iframe src="{{.Doc.URL}}#toolbar=1&navpanes=1&scrollbar=1" title="{{.Doc.OriginalFilename}}" style="width:100%;height:calc(100vh - 60px);border:0"></iframe>
{{end}}</body>
</html>
`))

func (f *Frame) WriteHTML(w io.Writer) error {
	f.mu.Lock()
	closed, state, pages := f.closed, f.state, f.pages
	f.mu.Unlock()
	if closed {
		return errSurfaceClosed
	}
	return framePage.Execute(w, map[string]any{
		"Theme": string(f.opts.Theme),
		"Doc":   f.doc,
		"Size":  documents.FormatSize(f.doc.SizeBytes),
		"State": state.String(),
		"Pages": pages,
	})
}

func (f *Frame) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cancel()
}
