package documents

import (
	"context"
	"sync"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
)

// Library holds one controller's view of the document list. Each controller owns
// its own Library; lists are not shared, so they can briefly disagree.
type Library struct {
	client *Client

	mu      sync.Mutex
	docs    []Document
	loading bool
}

func NewLibrary(client *Client) *Library {
	return &Library{client: client, docs: []Document{}}
}

// Client exposes the underlying repository client.
func (l *Library) Client() *Client { return l.client }

// Refresh replaces the list with a fresh List call and returns it.
func (l *Library) Refresh(ctx context.Context) []Document {
	l.setLoading(true)
	docs := l.client.List(ctx)

	l.mu.Lock()
	l.docs = docs
	l.loading = false
	l.mu.Unlock()
	return cloneDocs(docs)
}

// UploadAll uploads each file in order, then refreshes the list once. The
// returned slice holds one entry per failed file.
func (l *Library) UploadAll(ctx context.Context, parts []backend.Part) []error {
	if len(parts) == 0 {
		return nil
	}
	l.setLoading(true)
	var errs []error
	for _, p := range parts {
		if _, err := l.client.Upload(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	l.Refresh(ctx)
	return errs
}

// Delete removes a document and refreshes the list on success.
func (l *Library) Delete(ctx context.Context, id string) error {
	if err := l.client.Delete(ctx, id); err != nil {
		return err
	}
	l.Refresh(ctx)
	return nil
}

// Documents returns a snapshot of the current list.
func (l *Library) Documents() []Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneDocs(l.docs)
}

// PDFs returns the documents whose type is pdf.
func (l *Library) PDFs() []Document {
	return FilterPDFs(l.Documents())
}

// Find looks a document up by id in the current snapshot.
func (l *Library) Find(id string) (Document, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range l.docs {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

func (l *Library) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

func (l *Library) setLoading(v bool) {
	l.mu.Lock()
	l.loading = v
	l.mu.Unlock()
}

// FilterPDFs keeps only pdf documents, preserving order.
func FilterPDFs(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.IsPDF() {
			out = append(out, d)
		}
	}
	return out
}

func cloneDocs(docs []Document) []Document {
	out := make([]Document, len(docs))
	copy(out, docs)
	return out
}
