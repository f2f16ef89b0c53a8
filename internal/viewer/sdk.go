package viewer

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
	"github.com/thywilljoshua/pdf-insights/internal/documents"
)

// ScriptRegistry records which scripts are already present in the page scope.
type ScriptRegistry struct {
	mu     sync.Mutex
	loaded map[string]bool
}

func NewScriptRegistry() *ScriptRegistry {
	return &ScriptRegistry{loaded: make(map[string]bool)}
}

// GlobalScope is shared by every viewer in the process.
var GlobalScope = NewScriptRegistry()

func (r *ScriptRegistry) Present(src string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded[src]
}

func (r *ScriptRegistry) Register(src string) {
	r.mu.Lock()
	r.loaded[src] = true
	r.mu.Unlock()
}

// SDKRenderer renders through the hosted embed SDK.
type SDKRenderer struct {
	fetch    *backend.Client
	src      string
	registry *ScriptRegistry
}

// NewSDKRenderer loads src through fetch, which must accept absolute URLs.
func NewSDKRenderer(fetch *backend.Client, src string, registry *ScriptRegistry) *SDKRenderer {
	if src == "" {
		src = DefaultSDKURL
	}
	if registry == nil {
		registry = GlobalScope
	}
	return &SDKRenderer{fetch: fetch, src: src, registry: registry}
}

func (r *SDKRenderer) ScriptURL() string { return r.src }

// Load succeeds at once when the script is already registered. Otherwise the
// script is fetched; any non-2xx or transport error fails the load.
func (r *SDKRenderer) Load(ctx context.Context) error {
	if r.registry.Present(r.src) {
		return nil
	}
	if _, err := r.fetch.GetBytes(ctx, r.src); err != nil {
		return fmt.Errorf("load embed sdk: %w", err)
	}
	r.registry.Register(r.src)
	return nil
}

func (r *SDKRenderer) Render(_ context.Context, doc documents.Document, opts Options) (Surface, error) {
	if doc.URL == "" {
		return nil, fmt.Errorf("document %s has no url", doc.ID)
	}
	return &sdkSurface{doc: doc, src: r.src, opts: opts}, nil
}

type embedOptions struct {
	EmbedMode           string `json:"embedMode"`
	ShowLeftHandPanel   bool   `json:"showLeftHandPanel"`
	ShowDownloadPDF     bool   `json:"showDownloadPDF"`
	ShowPrintPDF        bool   `json:"showPrintPDF"`
	ShowAnnotationTools bool   `json:"showAnnotationTools"`
}

var sdkPage = template.Must(template.New("sdk").Parse(`<!DOCTYPE html>
<html class="{{.Theme}}">
<head>
<meta charset="utf-8">
<title>{{.FileName}}</title>
<script src="{{.SDKURL}}"></script>
</head>
<body>
<div id="adobe-dc-view" style="height:100vh"></div>
<script>
document.addEventListener("adobe_dc_view_sdk.ready", function () {
  var view = new AdobeDC.View({clientId: {{.ClientID}}, divId: "adobe-dc-view"});
  view.previewFile({content: {location: {url: {{.URL}}}}, metaData: {fileName: {{.FileName}}}}, {{.Embed}});
});
</script>
</body>
</html>
`))

type sdkSurface struct {
	doc  documents.Document
	src  string
	opts Options

	mu     sync.Mutex
	closed bool
}

func (s *sdkSurface) Kind() SurfaceKind { return SurfaceSDK }
func (s *sdkSurface) Document() documents.Document { return s.doc }

func (s *sdkSurface) WriteHTML(w io.Writer) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errSurfaceClosed
	}
	return sdkPage.Execute(w, map[string]any{
		"Theme":    string(s.opts.Theme),
		"FileName": s.doc.OriginalFilename,
		"SDKURL":   s.src,
		"ClientID": s.opts.ClientID,
		"URL":      s.doc.URL,
		"Embed": embedOptions{
			EmbedMode:           s.opts.EmbedMode,
			ShowLeftHandPanel:   s.opts.ShowLeftHandPanel,
			ShowDownloadPDF:     s.opts.ShowDownloadPDF,
			ShowPrintPDF:        s.opts.ShowPrintPDF,
			ShowAnnotationTools: s.opts.ShowAnnotationTools,
		},
	})
}

func (s *sdkSurface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
