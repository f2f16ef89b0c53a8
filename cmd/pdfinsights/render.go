package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/thywilljoshua/pdf-insights/internal/persona"
	"github.com/thywilljoshua/pdf-insights/internal/qa"
	"github.com/thywilljoshua/pdf-insights/internal/retrieval"
	"github.com/thywilljoshua/pdf-insights/internal/thread"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	faint   = color.New(color.Faint)
	warnCol = color.New(color.FgYellow)
	errCol  = color.New(color.FgRed)
	okCol   = color.New(color.FgGreen)
	userCol = color.New(color.FgBlue, color.Bold)
)

func printMessage(w io.Writer, m thread.Message) {
	switch {
	case m.Role == thread.RoleUser:
		userCol.Fprint(w, "you> ")
	case m.Flag == thread.FlagError:
		errCol.Fprint(w, "bot> ")
	case m.Flag == thread.FlagWarning:
		warnCol.Fprint(w, "bot> ")
	default:
		okCol.Fprint(w, "bot> ")
	}
	fmt.Fprintln(w, m.Content)
	if m.Analysis != nil && len(m.Analysis.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, m.Analysis.Raw, "     ", "  "); err == nil {
			faint.Fprintf(w, "     %s\n", buf.String())
		}
	}
}

func printThread(w io.Writer, t *thread.Thread) {
	for _, m := range t.Messages() {
		printMessage(w, m)
	}
}

func printAnswer(w io.Writer, a qa.Answer) {
	heading.Fprintln(w, a.Question)
	fmt.Fprintln(w, a.Summary)
	if len(a.Sections) == 0 {
		return
	}
	faint.Fprintln(w, "Relevant sections:")
	for _, s := range a.Sections {
		faint.Fprintf(w, "  - %s\n", qa.Excerpt(s))
	}
}

func printGroups(w io.Writer, groups []retrieval.Group) {
	if len(groups) == 0 {
		faint.Fprintln(w, "No insights.")
		return
	}
	for _, g := range groups {
		heading.Fprintln(w, strings.ReplaceAll(g.Label, "_", " "))
		for _, it := range g.Items {
			fmt.Fprintf(w, "  • %s\n", it)
		}
	}
}

func printSnippets(w io.Writer, snippets []retrieval.Snippet) {
	if len(snippets) == 0 {
		faint.Fprintln(w, "No matching snippets.")
		return
	}
	for _, s := range snippets {
		heading.Fprintf(w, "[%.3f] ", s.Score)
		if src := s.Source(); src != "" {
			faint.Fprintf(w, "%s ", src)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", s.Text)
	}
}

func printPersonaSnippets(w io.Writer, snippets []persona.Snippet) {
	for _, s := range snippets {
		heading.Fprintf(w, "%s ", s.SectionHeading)
		faint.Fprintf(w, "(page %d)\n", s.Page())
		fmt.Fprintf(w, "  %s\n", s.Snippet)
	}
}

// formatRate renders a playback rate such as 1.25 as "1.25x".
func formatRate(rate float64) string {
	return fmt.Sprintf("%gx", rate)
}

func printErrors(w io.Writer, errs []error) {
	for _, err := range errs {
		errCol.Fprintf(w, "error: %v\n", err)
	}
}
