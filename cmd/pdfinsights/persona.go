package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/pdf-insights/internal/persona"
)

func personaCmd(e *env) *cobra.Command {
	var role string
	var goal string
	var docIDs []string
	var selection string
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Analyze documents for a role and goal, or suggest snippets for a selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			results := make(chan []persona.Snippet, 1)
			c := e.app.Persona(persona.WithSnippetListener(func(s []persona.Snippet) {
				select {
				case results <- s:
				default:
				}
			}))
			defer c.Close()

			if len(docIDs) == 0 {
				for _, d := range c.Load(ctx) {
					faint.Fprintf(w, "%s  %s\n", d.ID, d.OriginalFilename)
				}
			}
			c.SetRole(role)
			c.SetDocuments(docIDs)

			if selection != "" {
				c.SetSelection(selection)
				timer := time.NewTimer(wait)
				defer timer.Stop()
				select {
				case s := <-results:
					printPersonaSnippets(w, s)
				case <-timer.C:
					warnCol.Fprintln(w, "No snippets before timeout.")
				case <-ctx.Done():
					return ctx.Err()
				}
				if goal == "" {
					return nil
				}
			}

			c.SetGoal(goal)
			_, err := c.StartAnalysis(ctx)
			printThread(w, c.Thread())
			if errors.Is(err, persona.ErrNoDocuments) || errors.Is(err, persona.ErrNoGoal) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", "Researcher", "Persona role")
	cmd.Flags().StringVar(&goal, "goal", "", "What you want to accomplish")
	cmd.Flags().StringArrayVar(&docIDs, "doc", nil, "Document id to analyze (repeatable, first one scopes snippets)")
	cmd.Flags().StringVar(&selection, "selection", "", "Selected text to find related snippets for")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for snippets")
	return cmd
}
