package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
)

func ragCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Ingest PDFs into the retrieval index and query it",
	}
	cmd.AddCommand(ragIngestCmd(e), ragInsightsCmd(e), ragSearchCmd(e))
	return cmd
}

func ragIngestCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pdf>...",
		Short: "Ingest PDFs into the retrieval index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.app.Retrieval(cmd.Context(), false)
			if err != nil {
				return err
			}
			parts := make([]backend.Part, 0, len(args))
			for _, a := range args {
				parts = append(parts, backend.FilePart(a))
			}
			msg, err := c.Ingest(cmd.Context(), parts)
			if err != nil {
				errCol.Fprintln(cmd.ErrOrStderr(), c.Snapshot().UploadMessage)
				return err
			}
			okCol.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func ragInsightsCmd(e *env) *cobra.Command {
	var gemini bool

	cmd := &cobra.Command{
		Use:   "insights <highlight>...",
		Short: "Generate grouped insights for a highlighted passage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.app.Retrieval(cmd.Context(), gemini)
			if err != nil {
				return err
			}
			groups, err := c.Insights(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				errCol.Fprintln(cmd.ErrOrStderr(), c.Snapshot().InsightsError)
				return err
			}
			printGroups(cmd.OutOrStdout(), groups)
			return nil
		},
	}
	cmd.Flags().BoolVar(&gemini, "gemini", false, "Generate insights with Gemini regardless of config")
	return cmd
}

func ragSearchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "search <highlight>...",
		Short: "Find snippets related to a highlighted passage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.app.Retrieval(cmd.Context(), false)
			if err != nil {
				return err
			}
			snippets, err := c.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printSnippets(cmd.OutOrStdout(), snippets)
			return nil
		},
	}
}
