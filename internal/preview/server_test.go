package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
	"github.com/thywilljoshua/pdf-insights/internal/documents"
	"github.com/thywilljoshua/pdf-insights/internal/prefs"
	"github.com/thywilljoshua/pdf-insights/internal/testutil"
	"github.com/thywilljoshua/pdf-insights/internal/viewer"
)

type env struct {
	api     *testutil.FakeAPI
	fetched chan string
	viewer  *viewer.Viewer
	prefs   *prefs.Service
	server  *Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	api := testutil.NewFakeAPI()
	t.Cleanup(api.Close)
	api.JSON("GET /api/persona-analyze/available-docs", http.StatusOK, map[string]any{
		"available_documents": []map[string]any{
			{"doc_id": "d1", "original_filename": "report.pdf", "file_type": "pdf", "file_size_bytes": 1024, "upload_timestamp": "2024-05-01T10:00:00"},
		},
	})
	fetched := make(chan string, 8)
	api.Handle("GET /api/pdf/{id}/file", func(w http.ResponseWriter, r *http.Request) {
		select {
		case fetched <- r.PathValue("id"):
		default:
		}
		w.Write(testutil.MinimalPDF(1))
	})
	api.Handle("GET /viewer.js", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	})

	docs := documents.NewClient(backend.New(api.URL), nil)
	v := viewer.New(docs,
		viewer.NewSDKRenderer(backend.New(""), api.URL+"/viewer.js", viewer.NewScriptRegistry()),
		viewer.NewLocalRenderer(docs.FetchPDF),
		viewer.WithHost("localhost"),
		viewer.WithDocumentURL(DocumentURL),
	)
	t.Cleanup(v.Close)
	p := prefs.NewService("", nil)
	return &env{api: api, fetched: fetched, viewer: v, prefs: p, server: New(Config{Addr: ":0"}, v, docs, p, nil)}
}

func (e *env) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestServer_IndexPlaceholderBeforeMount(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No PDFs uploaded yet.")
	assert.Contains(t, rec.Body.String(), "no-selection")
}

func TestServer_IndexShowsLocalFrame(t *testing.T) {
	e := newEnv(t)
	e.viewer.Mount(context.Background())

	rec := e.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "report.pdf")
	assert.Contains(t, rec.Body.String(), "/api/pdf/d1/file")

	rec = e.do(http.MethodGet, "/api/state")
	var st stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "local-fallback", st.State)
	assert.Equal(t, "d1", st.Selection)
	assert.Equal(t, "frame", st.Surface)
}

func TestServer_PDFProxyIsCached(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 2; i++ {
		rec := e.do(http.MethodGet, "/api/pdf/d1/file")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	}
	assert.Equal(t, 1, e.api.Calls("GET /api/pdf/d1/file"))
}

func TestServer_ThemeToggleFansOut(t *testing.T) {
	e := newEnv(t)
	e.viewer.Mount(context.Background())

	rec := e.do(http.MethodPost, "/theme/toggle")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, prefs.ThemeDark, e.prefs.Theme())

	rec = e.do(http.MethodGet, "/")
	assert.Contains(t, rec.Body.String(), `class="dark"`)
}

func TestServer_SelectUnknown(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/select/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_FallbackToggle(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/fallback?on=true")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, e.viewer.LocalFallbackEnabled())

	e.do(http.MethodPost, "/fallback?on=false")
	assert.False(t, e.viewer.LocalFallbackEnabled())
}

func TestServer_PDFProxyUnescapesID(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/api/pdf/"+url.PathEscape("reports/q3")+"/file")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reports/q3", <-e.fetched)
}
