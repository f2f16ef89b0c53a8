// Package testutil provides a scriptable stand-in for the PDF insights backend.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeAPI is an httptest server whose routes are registered per test.
type FakeAPI struct {
	*httptest.Server

	mu     sync.Mutex
	mux    *http.ServeMux
	calls  map[string]int
	bodies map[string][][]byte
}

// NewFakeAPI starts a server. Callers must Close it.
func NewFakeAPI() *FakeAPI {
	f := &FakeAPI{
		mux:    http.NewServeMux(),
		calls:  make(map[string]int),
		bodies: make(map[string][][]byte),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

func (f *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	key := r.Method + " " + r.URL.Path
	f.calls[key]++
	f.mu.Unlock()
	f.mux.ServeHTTP(w, r)
}

// Handle registers h for a ServeMux pattern such as "POST /api/gemini/upload".
func (f *FakeAPI) Handle(pattern string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mux.HandleFunc(pattern, h)
}

// JSON registers a route that always answers with v.
func (f *FakeAPI) JSON(pattern string, status int, v any) {
	f.Handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, v)
	})
}

// Calls returns how often "METHOD /path" was requested.
func (f *FakeAPI) Calls(methodPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[methodPath]
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a JSON request body into a generic map.
func DecodeJSON(r *http.Request) map[string]any {
	var m map[string]any
	json.NewDecoder(r.Body).Decode(&m)
	return m
}
