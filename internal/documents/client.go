package documents

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
)

const (
	pathAvailable = "/api/persona-analyze/available-docs"
	pathUpload    = "/api/files/upload"
	pathFiles     = "/api/files/"
)

// Client talks to the document routes. It never caches: every call hits the backend.
type Client struct {
	api *backend.Client
	log *zap.Logger
}

func NewClient(api *backend.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: api, log: log.With(zap.String("module", "documents"))}
}

type listResponse struct {
	AvailableDocuments []Document `json:"available_documents"`
}

// List returns every document the backend knows about. It fails soft: any error
// is logged and an empty, non-nil slice is returned.
func (c *Client) List(ctx context.Context) []Document {
	var resp listResponse
	if err := c.api.GetJSON(ctx, pathAvailable, &resp); err != nil {
		c.log.Warn("list documents failed", zap.Error(err))
		return []Document{}
	}
	docs := make([]Document, 0, len(resp.AvailableDocuments))
	for _, d := range resp.AvailableDocuments {
		docs = append(docs, c.withURL(d))
	}
	return docs
}

// Upload sends one file. Failures are returned to the caller; nothing is retried.
func (c *Client) Upload(ctx context.Context, part backend.Part) (Document, error) {
	var doc Document
	if err := c.api.PostMultipart(ctx, pathUpload, "file", []backend.Part{part}, &doc); err != nil {
		return Document{}, fmt.Errorf("upload %s: %w", part.Name, err)
	}
	if doc.OriginalFilename == "" {
		doc.OriginalFilename = part.Name
	}
	c.log.Info("document uploaded", zap.String("doc_id", doc.ID), zap.String("file", part.Name))
	return c.withURL(doc), nil
}

// Delete removes a document. Failures are returned to the caller; nothing is retried.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.api.Delete(ctx, pathFiles+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	c.log.Info("document deleted", zap.String("doc_id", id))
	return nil
}

// FetchPDF downloads the raw bytes of a document.
func (c *Client) FetchPDF(ctx context.Context, id string) ([]byte, error) {
	b, err := c.api.GetBytes(ctx, PDFPath(id))
	if err != nil {
		return nil, fmt.Errorf("fetch pdf %s: %w", id, err)
	}
	return b, nil
}

func (c *Client) withURL(d Document) Document {
	if d.ID != "" {
		d.URL = c.api.URL(PDFPath(d.ID))
	}
	return d
}
