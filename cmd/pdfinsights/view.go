package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func viewCmd(e *env) *cobra.Command {
	var addr string
	var docID string
	var fallback bool

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Serve a browser preview of stored PDFs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			v := e.app.Viewer()
			defer v.Close()
			pdfs := v.Mount(ctx)
			if docID != "" && !v.SelectID(ctx, docID) {
				return fmt.Errorf("no PDF with id %q", docID)
			}
			if fallback {
				v.SetLocalFallback(ctx, true)
			}

			srv := e.app.Preview(v, addr)
			w := cmd.OutOrStdout()
			if addr == "" {
				addr = e.app.Config.Preview.Addr
			}
			heading.Fprintf(w, "Preview on http://%s ", addr)
			faint.Fprintf(w, "(%d PDFs, %s)\n", len(pdfs), v.State())
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().StringVar(&docID, "doc", "", "Document id to select first")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "Start with the local viewer instead of the embed SDK")
	return cmd
}
