package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"question":"hi"}`, string(body))
		w.Write([]byte(`{"summary":"hello"}`))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	var out struct {
		Summary string `json:"summary"`
	}
	require.NoError(t, c.PostJSON(context.Background(), "/api/gemini/summarise", map[string]string{"question": "hi"}, &out))
	assert.Equal(t, "hello", out.Summary)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL).GetJSON(context.Background(), "/api/x", nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "boom", se.Body)
	assert.True(t, IsStatus(err, http.StatusInternalServerError))
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url).GetJSON(context.Background(), "/api/x", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestClient_PostMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		files := r.MultipartForm.File["files"]
		if !assert.Len(t, files, 2) {
			return
		}
		assert.Equal(t, "a.pdf", files[0].Filename)
		assert.Equal(t, "b.pdf", files[1].Filename)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	var out struct {
		Success bool `json:"success"`
	}
	parts := []Part{BytesPart("a.pdf", []byte("%PDF-a")), BytesPart("b.pdf", []byte("%PDF-b"))}
	require.NoError(t, New(srv.URL).PostMultipart(context.Background(), "/api/gemini/upload", "files", parts, &out))
	assert.True(t, out.Success)
}

func TestClient_PostMultipartNoParts(t *testing.T) {
	err := New("http://unused").PostMultipart(context.Background(), "/api/files/upload", "file", nil, nil)
	assert.Error(t, err)
}

func TestClient_URL(t *testing.T) {
	c := New("http://localhost:8000/")
	assert.Equal(t, "http://localhost:8000/api/pdf/1/file", c.URL("/api/pdf/1/file"))
	assert.Equal(t, "http://localhost:8000/api/x", c.URL("api/x"))
	assert.Equal(t, "https://cdn.example/a.wav", c.URL("https://cdn.example/a.wav"))
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithRateLimit(0.001, 1))
	require.NoError(t, c.GetJSON(context.Background(), "/a", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.GetJSON(ctx, "/b", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
