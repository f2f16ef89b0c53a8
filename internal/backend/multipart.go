package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Part is one file in a multipart upload.
type Part struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FilePart reads the named file from disk when the upload is built.
func FilePart(path string) Part {
	return Part{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesPart wraps in-memory content.
func BytesPart(name string, data []byte) Part {
	return Part{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func encodeMultipart(field string, parts []Part) (io.Reader, string, error) {
	if len(parts) == 0 {
		return nil, "", errors.New("no files to upload")
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if err := writePart(w, field, p); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, field string, p Part) error {
	if p.Open == nil {
		return fmt.Errorf("file %q has no content", p.Name)
	}
	rc, err := p.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", p.Name, err)
	}
	defer rc.Close()
	fw, err := w.CreateFormFile(field, p.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, rc); err != nil {
		return fmt.Errorf("read %s: %w", p.Name, err)
	}
	return nil
}
