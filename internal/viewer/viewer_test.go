package viewer

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
	"github.com/thywilljoshua/pdf-insights/internal/documents"
	"github.com/thywilljoshua/pdf-insights/internal/prefs"
	"github.com/thywilljoshua/pdf-insights/internal/testutil"
)

type fixture struct {
	api   *testutil.FakeAPI
	docs  *documents.Client
	mu    sync.Mutex
	list  []map[string]any
	sdkOK bool
}

func newFixture(t *testing.T, sdkOK bool) *fixture {
	t.Helper()
	f := &fixture{
		api:   testutil.NewFakeAPI(),
		sdkOK: sdkOK,
		list: []map[string]any{
			{"doc_id": "j1", "original_filename": "data.json", "file_type": "json", "file_size_bytes": 10, "upload_timestamp": "2024-05-01T10:00:00"},
			{"doc_id": "d1", "original_filename": "report.pdf", "file_type": "pdf", "file_size_bytes": 2048, "upload_timestamp": "2024-05-01T10:00:00"},
			{"doc_id": "d2", "original_filename": "annex.pdf", "file_type": "pdf", "file_size_bytes": 4096, "upload_timestamp": "2024-05-02T10:00:00"},
		},
	}
	t.Cleanup(f.api.Close)

	f.api.Handle("GET /api/persona-analyze/available-docs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"available_documents": f.list})
	})
	f.api.Handle("GET /api/pdf/{id}/file", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "broken" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(testutil.MinimalPDF(2))
	})
	f.api.Handle("GET /sdk/viewer.js", func(w http.ResponseWriter, r *http.Request) {
		if !f.sdkOK {
			http.Error(w, "blocked", http.StatusForbidden)
			return
		}
		w.Write([]byte("window.AdobeDC = {};"))
	})
	f.docs = documents.NewClient(backend.New(f.api.URL), nil)
	return f
}

func (f *fixture) viewer(t *testing.T, opts ...Option) *Viewer {
	t.Helper()
	fetch := backend.New("")
	sdk := NewSDKRenderer(fetch, f.api.URL+"/sdk/viewer.js", NewScriptRegistry())
	local := NewLocalRenderer(f.docs.FetchPDF)
	opts = append([]Option{WithOptions(Options{
		ClientID:            "client-123",
		EmbedMode:           EmbedSizedContainer,
		ShowLeftHandPanel:   true,
		ShowDownloadPDF:     true,
		ShowPrintPDF:        true,
		ShowAnnotationTools: true,
		Theme:               prefs.ThemeLight,
	})}, opts...)
	v := New(f.docs, sdk, local, opts...)
	t.Cleanup(v.Close)
	return v
}

func settle(t *testing.T, v *Viewer) {
	t.Helper()
	select {
	case <-v.ScriptSettled():
	case <-time.After(2 * time.Second):
		t.Fatal("sdk load did not settle")
	}
}

func html(t *testing.T, s Surface) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.WriteHTML(&buf))
	return buf.String()
}

// waitSurface waits for the background render that follows a settled load.
func waitSurface(t *testing.T, v *Viewer, kind SurfaceKind, id string) Surface {
	t.Helper()
	var s Surface
	require.Eventually(t, func() bool {
		s = v.Surface()
		return s != nil && s.Kind() == kind && s.Document().ID == id
	}, 2*time.Second, 5*time.Millisecond)
	return s
}

func TestViewer_InitialState(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t)
	assert.Equal(t, NoSelection, v.State())
	assert.Nil(t, v.Surface())
}

func TestViewer_SDKPath(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t, WithHost("insights.example.com"))

	docs := v.Mount(context.Background())
	require.Len(t, docs, 2)
	sel, ok := v.Selection()
	require.True(t, ok)
	assert.Equal(t, "d1", sel.ID)

	settle(t, v)
	assert.Equal(t, SDKReady, v.State())
	first := waitSurface(t, v, SurfaceSDK, "d1")

	page := html(t, first)
	assert.Contains(t, page, `"SIZED_CONTAINER"`)
	assert.Contains(t, page, `"client-123"`)
	assert.Contains(t, page, `report.pdf`)
	assert.Contains(t, page, `"showAnnotationTools":true`)
	assert.Contains(t, page, f.api.URL+"/sdk/viewer.js")

	require.True(t, v.SelectID(context.Background(), "d2"))
	second := v.Surface()
	require.NotNil(t, second)
	assert.Equal(t, "d2", second.Document().ID)

	var buf bytes.Buffer
	assert.Error(t, first.WriteHTML(&buf), "replaced surface must be closed")
}

func TestViewer_SDKFailureNeedsManualFallback(t *testing.T) {
	f := newFixture(t, false)
	v := f.viewer(t, WithHost("insights.example.com"))
	ctx := context.Background()

	v.Mount(ctx)
	settle(t, v)
	assert.Equal(t, SDKFailed, v.State())
	assert.Nil(t, v.Surface())

	v.SetLocalFallback(ctx, true)
	assert.Equal(t, LocalFallback, v.State())
	frame, ok := v.Surface().(*Frame)
	require.True(t, ok)

	state, err := frame.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, FrameReady, state)
	assert.Equal(t, 2, frame.Pages())
	assert.Nil(t, frame.Actions())
	assert.Contains(t, html(t, frame), "<iframe")

	v.SetLocalFallback(ctx, false)
	assert.Equal(t, SDKFailed, v.State())
	assert.Nil(t, v.Surface())
	var buf bytes.Buffer
	assert.Error(t, frame.WriteHTML(&buf))
}

func TestViewer_LocalHostFallsBackAutomatically(t *testing.T) {
	f := newFixture(t, false)
	v := f.viewer(t, WithHost("localhost:5173"))

	v.Mount(context.Background())
	assert.Equal(t, LocalFallback, v.State())
	settle(t, v)
	assert.Equal(t, LocalFallback, v.State())
	waitSurface(t, v, SurfaceFrame, "d1")
}

func TestViewer_LocalHostSwitchesToSDKWhenReady(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t, WithHost("127.0.0.1"))

	v.Mount(context.Background())
	settle(t, v)
	assert.Equal(t, SDKReady, v.State())
	waitSurface(t, v, SurfaceSDK, "d1")
}

func TestViewer_RegisteredScriptIsNotFetched(t *testing.T) {
	f := newFixture(t, true)
	registry := NewScriptRegistry()
	registry.Register(f.api.URL + "/sdk/viewer.js")
	sdk := NewSDKRenderer(backend.New(""), f.api.URL+"/sdk/viewer.js", registry)

	require.NoError(t, sdk.Load(context.Background()))
	assert.Zero(t, f.api.Calls("GET /sdk/viewer.js"))
}

func TestFrame_ErrorOffersRecovery(t *testing.T) {
	f := newFixture(t, true)
	local := NewLocalRenderer(f.docs.FetchPDF)
	doc := documents.Document{ID: "broken", OriginalFilename: "broken.pdf", URL: "http://docs/broken.pdf"}

	s, err := local.Render(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	frame := s.(*Frame)
	state, err := frame.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FrameError, state)
	assert.Error(t, frame.Err())
	assert.Equal(t, []Action{
		{Name: ActionOpenExternally, Target: "http://docs/broken.pdf"},
		{Name: ActionPrint},
	}, frame.Actions())
	assert.Contains(t, html(t, frame), "PDF Loading Error")
}

func TestFrame_RejectsNonPDF(t *testing.T) {
	local := NewLocalRenderer(func(context.Context, string) ([]byte, error) {
		return []byte("<html>not a pdf</html>"), nil
	})
	s, err := local.Render(context.Background(), documents.Document{ID: "x"}, DefaultOptions())
	require.NoError(t, err)
	state, err := s.(*Frame).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FrameError, state)
}

func TestViewer_DeletedSelectionIsKept(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t, WithHost("insights.example.com"))
	ctx := context.Background()
	v.Mount(ctx)

	f.mu.Lock()
	f.list = f.list[:1]
	f.mu.Unlock()

	assert.Empty(t, v.Refresh(ctx))
	sel, ok := v.Selection()
	assert.True(t, ok)
	assert.Equal(t, "d1", sel.ID)
}

func TestViewer_ThemeChangeRerenders(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t, WithHost("insights.example.com"))
	ctx := context.Background()
	v.Mount(ctx)
	settle(t, v)
	before := waitSurface(t, v, SurfaceSDK, "d1")

	v.SetTheme(ctx, prefs.ThemeDark)
	after := v.Surface()
	require.NotNil(t, after)
	assert.NotSame(t, before, after)
	assert.Contains(t, html(t, after), `class="dark"`)
}

func TestViewer_DocumentURLRewrite(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t, WithHost("insights.example.com"), WithDocumentURL(func(d documents.Document) string {
		return "/proxy/" + d.ID
	}))
	v.Mount(context.Background())
	settle(t, v)
	s := waitSurface(t, v, SurfaceSDK, "d1")
	assert.Equal(t, "/proxy/d1", s.Document().URL)
}

func TestIsLocalHost(t *testing.T) {
	tests := map[string]bool{
		"localhost":        true,
		"localhost:5173":   true,
		"127.0.0.1":        true,
		"127.0.0.1:8000":   true,
		"devbox.local":     true,
		"app.local.test":   true,
		"example.com":      false,
		"":                 false,
		"192.168.1.4:3000": false,
	}
	for host, want := range tests {
		assert.Equal(t, want, IsLocalHost(host), host)
	}
}

func TestViewer_FallbackRoundTripKeepsOneSurface(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t, WithHost("insights.example.com"))
	ctx := context.Background()

	v.Mount(ctx)
	settle(t, v)
	sdk := waitSurface(t, v, SurfaceSDK, "d1")

	v.SetLocalFallback(ctx, true)
	assert.Equal(t, LocalFallback, v.State())
	frame, ok := v.Surface().(*Frame)
	require.True(t, ok)
	var buf bytes.Buffer
	assert.Error(t, sdk.WriteHTML(&buf), "sdk surface must be closed once the frame shows")

	v.SetLocalFallback(ctx, false)
	assert.Equal(t, SDKReady, v.State())
	again := v.Surface()
	require.NotNil(t, again)
	assert.Equal(t, SurfaceSDK, again.Kind())
	assert.NotSame(t, sdk, again)
	assert.Error(t, frame.WriteHTML(&buf), "frame must be closed once the sdk shows")
	assert.Contains(t, html(t, again), "report.pdf")
}

// gatedRenderer blocks the first Load until release is closed.
type gatedRenderer struct {
	Renderer
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (g *gatedRenderer) Load(ctx context.Context) error {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	g.mu.Unlock()
	if first {
		<-g.release
	}
	return nil
}

func (g *gatedRenderer) loads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestViewer_ScriptSettledBeforeMount(t *testing.T) {
	f := newFixture(t, true)
	v := f.viewer(t)
	select {
	case <-v.ScriptSettled():
	default:
		t.Fatal("nothing is loading before Mount")
	}
}

func TestViewer_SupersededMountSettles(t *testing.T) {
	f := newFixture(t, true)
	sdk := &gatedRenderer{
		Renderer: NewSDKRenderer(backend.New(""), f.api.URL+"/sdk/viewer.js", NewScriptRegistry()),
		release:  make(chan struct{}),
	}
	v := New(f.docs, sdk, NewLocalRenderer(f.docs.FetchPDF), WithHost("insights.example.com"))
	t.Cleanup(v.Close)
	ctx := context.Background()

	v.Mount(ctx)
	first := v.ScriptSettled()
	require.Eventually(t, func() bool { return sdk.loads() == 1 }, 2*time.Second, 5*time.Millisecond)
	v.Mount(ctx)
	settle(t, v)
	assert.Equal(t, SDKReady, v.State())

	close(sdk.release)
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded load never settled")
	}
	assert.Equal(t, SDKReady, v.State())
}
