// Package app wires configuration into the controllers used by the CLI.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/ai"
	"github.com/thywilljoshua/pdf-insights/internal/backend"
	"github.com/thywilljoshua/pdf-insights/internal/config"
	"github.com/thywilljoshua/pdf-insights/internal/documents"
	"github.com/thywilljoshua/pdf-insights/internal/persona"
	"github.com/thywilljoshua/pdf-insights/internal/prefs"
	"github.com/thywilljoshua/pdf-insights/internal/preview"
	"github.com/thywilljoshua/pdf-insights/internal/qa"
	"github.com/thywilljoshua/pdf-insights/internal/retrieval"
	"github.com/thywilljoshua/pdf-insights/internal/viewer"
)

// App holds the shared clients. Controllers are created per command so each
// owns its own state.
type App struct {
	Config *config.Config
	Log    *zap.Logger
	API    *backend.Client
	Docs   *documents.Client
	Prefs  *prefs.Service
}

func New(cfg *config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	api := backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout.Duration),
		backend.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.Burst),
		backend.WithLogger(log.Named("backend")),
	)
	p := prefs.NewService(cfg.Prefs.Path, log)
	if _, err := p.Load(); err != nil {
		log.Warn("preferences not loaded", zap.Error(err))
	}
	return &App{
		Config: cfg,
		Log:    log,
		API:    api,
		Docs:   documents.NewClient(api, log),
		Prefs:  p,
	}
}

func (a *App) Library() *documents.Library {
	return documents.NewLibrary(a.Docs)
}

// Media saves narration into the configured audio directory.
func (a *App) Media() *qa.SaveMedia {
	return qa.NewSaveMedia(a.API, a.Config.Audio.OutDir)
}

func (a *App) QA(media qa.Media) *qa.Pipeline {
	return qa.New(a.API, media, a.Log, qa.WithPlaybackRate(a.Config.Audio.Speed))
}

// InsightSource picks the insights provider. forceGemini overrides the
// configured provider.
func (a *App) InsightSource(ctx context.Context, forceGemini bool) (retrieval.InsightSource, error) {
	cfg := a.Config.Insights
	if cfg.Provider != "gemini" && !forceGemini {
		return retrieval.NewBackendSource(a.API), nil
	}
	g, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("gemini insights: %w", err)
	}
	passages := ai.BackendPassages(func(ctx context.Context, highlight string) ([]retrieval.Snippet, error) {
		return retrieval.FetchSnippets(ctx, a.API, highlight)
	})
	a.Log.Debug("using gemini insights", zap.String("model", g.Model()))
	return ai.NewInsightSource(g, passages, a.Log), nil
}

func (a *App) Retrieval(ctx context.Context, forceGemini bool) (*retrieval.Controller, error) {
	src, err := a.InsightSource(ctx, forceGemini)
	if err != nil {
		return nil, err
	}
	return retrieval.New(a.API, retrieval.WithInsightSource(src), retrieval.WithLogger(a.Log)), nil
}

func (a *App) Persona(opts ...persona.Option) *persona.Controller {
	base := []persona.Option{
		persona.WithTopK(a.Config.Persona.TopK),
		persona.WithDebounce(a.Config.Persona.Debounce.Duration),
		persona.WithLogger(a.Log),
	}
	return persona.New(a.API, a.Library(), append(base, opts...)...)
}

// Viewer builds a viewer whose surfaces load documents through the preview
// server's proxy route.
func (a *App) Viewer() *viewer.Viewer {
	vc := a.Config.Viewer
	sdkFetch := backend.New("", backend.WithTimeout(a.Config.Backend.Timeout.Duration), backend.WithLogger(a.Log.Named("sdk")))
	opts := viewer.Options{
		ClientID:            vc.ClientID,
		EmbedMode:           vc.EmbedMode,
		ShowLeftHandPanel:   vc.ShowLeftHandPanel,
		ShowDownloadPDF:     vc.ShowDownloadPDF,
		ShowPrintPDF:        vc.ShowPrintPDF,
		ShowAnnotationTools: vc.ShowAnnotationTools,
		Theme:               a.Prefs.Theme(),
	}
	return viewer.New(a.Docs,
		viewer.NewSDKRenderer(sdkFetch, vc.SDKURL, viewer.GlobalScope),
		viewer.NewLocalRenderer(a.Docs.FetchPDF),
		viewer.WithOptions(opts),
		viewer.WithHost(vc.Host),
		viewer.WithDocumentURL(preview.DocumentURL),
		viewer.WithLogger(a.Log),
	)
}

func (a *App) Preview(v *viewer.Viewer, addr string) *preview.Server {
	if addr == "" {
		addr = a.Config.Preview.Addr
	}
	return preview.New(preview.Config{
		Addr:     addr,
		CacheTTL: a.Config.Preview.PDFCacheTTL.Duration,
	}, v, a.Docs, a.Prefs, a.Log)
}
