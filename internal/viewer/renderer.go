// Package viewer shows one selected PDF either through the hosted embed SDK
// or through a local frame, and switches between the two paths.
package viewer

import (
	"context"
	"io"

	"github.com/thywilljoshua/pdf-insights/internal/documents"
	"github.com/thywilljoshua/pdf-insights/internal/prefs"
)

const (
	DefaultSDKURL = "https://documentservices.adobe.com/view-sdk/viewer.js"
	// EmbedSizedContainer keeps the embed inside its container instead of
	// adding a second page scrollbar.
	EmbedSizedContainer = "SIZED_CONTAINER"
)

// Options are passed to every render.
type Options struct {
	ClientID            string
	EmbedMode           string
	ShowLeftHandPanel   bool
	ShowDownloadPDF     bool
	ShowPrintPDF        bool
	ShowAnnotationTools bool
	Theme               prefs.Theme
}

func DefaultOptions() Options {
	return Options{
		EmbedMode:           EmbedSizedContainer,
		ShowLeftHandPanel:   true,
		ShowDownloadPDF:     true,
		ShowPrintPDF:        true,
		ShowAnnotationTools: true,
		Theme:               prefs.DefaultTheme,
	}
}

type SurfaceKind int

const (
	SurfaceSDK SurfaceKind = iota
	SurfaceFrame
)

func (k SurfaceKind) String() string {
	if k == SurfaceFrame {
		return "frame"
	}
	return "sdk"
}

// Surface is rendered content for one document. A closed surface must not
// be shown again.
type Surface interface {
	Kind() SurfaceKind
	Document() documents.Document
	WriteHTML(w io.Writer) error
	Close()
}

// Renderer is a rendering path. Load prepares the path once; Render produces
// a fresh surface for each call.
type Renderer interface {
	Load(ctx context.Context) error
	Render(ctx context.Context, doc documents.Document, opts Options) (Surface, error)
}
