package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thywilljoshua/pdf-insights/internal/app"
	"github.com/thywilljoshua/pdf-insights/internal/config"
	"github.com/thywilljoshua/pdf-insights/internal/logging"
)

// env carries the persistent flags and the app built from them.
type env struct {
	configPath string
	backendURL string
	logLevel   string

	app *app.App
}

func (e *env) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return err
	}
	if e.backendURL != "" {
		cfg.Backend.BaseURL = e.backendURL
	}
	if e.logLevel != "" {
		cfg.Logging.Level = e.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	e.app = app.New(cfg, log)
	e.app.Log.Debug("configured", zap.String("backend", cfg.Backend.BaseURL))
	return nil
}

func (e *env) teardown(*cobra.Command, []string) {
	if e.app != nil {
		_ = e.app.Log.Sync()
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:               "pdfinsights",
		Short:             "Browse, question and analyze PDFs held by a PDF insights backend",
		SilenceUsage:      true,
		PersistentPreRunE: e.setup,
		PersistentPostRun: e.teardown,
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "Path to a TOML config file")
	root.PersistentFlags().StringVar(&e.backendURL, "backend", "", "Backend base URL (overrides config)")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "debug|info|warn|error")

	root.AddCommand(docsCmd(e))
	root.AddCommand(viewCmd(e))
	root.AddCommand(qaCmd(e))
	root.AddCommand(ragCmd(e))
	root.AddCommand(personaCmd(e))
	root.AddCommand(themeCmd(e))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
