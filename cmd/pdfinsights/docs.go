package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
	"github.com/thywilljoshua/pdf-insights/internal/documents"
)

func docsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List, upload and delete stored documents",
	}
	cmd.AddCommand(docsListCmd(e), docsUploadCmd(e), docsDeleteCmd(e))
	return cmd
}

func printDocuments(cmd *cobra.Command, docs []documents.Document) {
	w := cmd.OutOrStdout()
	if len(docs) == 0 {
		faint.Fprintln(w, "No documents.")
		return
	}
	now := time.Now()
	for _, d := range docs {
		heading.Fprintf(w, "%s  ", d.ID)
		fmt.Fprintln(w, documents.Describe(d, now))
	}
}

func docsListCmd(e *env) *cobra.Command {
	var pdfOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := e.app.Library()
			lib.Refresh(cmd.Context())
			if pdfOnly {
				printDocuments(cmd, lib.PDFs())
				return nil
			}
			printDocuments(cmd, lib.Documents())
			return nil
		},
	}
	cmd.Flags().BoolVar(&pdfOnly, "pdf", false, "Only list PDFs")
	return cmd
}

func docsUploadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files one by one, then refresh the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := make([]backend.Part, 0, len(args))
			for _, p := range args {
				parts = append(parts, backend.FilePart(p))
			}
			lib := e.app.Library()
			errs := lib.UploadAll(cmd.Context(), parts)
			printErrors(cmd.ErrOrStderr(), errs)
			printDocuments(cmd, lib.Documents())
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d uploads failed", len(errs), len(args))
			}
			return nil
		},
	}
}

func docsDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := e.app.Library()
			if err := lib.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printDocuments(cmd, lib.Documents())
			return nil
		},
	}
}
