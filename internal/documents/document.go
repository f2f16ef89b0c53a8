// Package documents lists, uploads and deletes documents held by the backend.
package documents

import (
	"net/url"
	"strings"
	"time"
)

// Document is a file known to the backend document store.
type Document struct {
	ID               string `json:"doc_id"`
	OriginalFilename string `json:"original_filename"`
	SizeBytes        int64  `json:"file_size_bytes"`
	FileType         string `json:"file_type"`
	UploadTimestamp  string `json:"upload_timestamp"`

	// URL is derived by the client, never sent by the backend.
	URL string `json:"-"`
}

// IsPDF reports whether the backend classified the document as a PDF.
func (d Document) IsPDF() bool {
	return strings.EqualFold(d.FileType, "pdf")
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// UploadedAt parses the upload timestamp. The backend emits naive ISO-8601
// timestamps, which are read as UTC.
func (d Document) UploadedAt() (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, d.UploadTimestamp); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PDFPath is the API path serving the raw bytes of a document. The id is
// escaped as a single path segment.
func PDFPath(id string) string {
	return "/api/pdf/" + url.PathEscape(id) + "/file"
}
