package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/pdf-insights/internal/backend"
	"github.com/thywilljoshua/pdf-insights/internal/qa"
)

func qaCmd(e *env) *cobra.Command {
	var questions []string
	var audio bool
	var speed float64

	cmd := &cobra.Command{
		Use:   "qa <pdf>...",
		Short: "Index a batch of PDFs and ask questions about it",
		Long: "Uploads the PDFs for indexing, then answers each --question. " +
			"Without --question, questions are read from stdin, one per line.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			media := e.app.Media()
			p := e.app.QA(media)
			if cmd.Flags().Changed("speed") {
				if err := p.SetPlaybackRate(speed); err != nil {
					return fmt.Errorf("speed %v: %w", speed, err)
				}
			}

			parts := make([]backend.Part, 0, len(args))
			for _, a := range args {
				parts = append(parts, backend.FilePart(a))
			}
			if _, err := p.Stage(parts...); err != nil {
				return err
			}
			if err := p.Upload(ctx); err != nil {
				errCol.Fprintln(cmd.ErrOrStderr(), p.Snapshot().Error)
				return err
			}
			okCol.Fprintln(w, p.Snapshot().Notice)

			ask := func(q string) error {
				a, err := p.Ask(ctx, q)
				if err != nil {
					if msg := p.Snapshot().Error; msg != "" {
						errCol.Fprintln(cmd.ErrOrStderr(), msg)
					}
					return err
				}
				printAnswer(w, a)
				if !audio {
					return nil
				}
				if err := p.PlayAudio(ctx); err != nil {
					errCol.Fprintln(cmd.ErrOrStderr(), qa.MsgAudioFailed)
					return err
				}
				saved, err := media.Wait(ctx)
				if err != nil {
					return err
				}
				faint.Fprintf(w, "Narration (%s) saved to %s\n", formatRate(p.Snapshot().Rate), saved)
				return nil
			}

			if len(questions) > 0 {
				for _, q := range questions {
					if err := ask(q); err != nil {
						return err
					}
				}
				return nil
			}

			var failed int
			sc := bufio.NewScanner(cmd.InOrStdin())
			for sc.Scan() {
				q := strings.TrimSpace(sc.Text())
				if q == "" {
					continue
				}
				if err := ask(q); err != nil {
					failed++
				}
			}
			if err := sc.Err(); err != nil {
				return err
			}
			if failed > 0 {
				return errors.New("some questions could not be answered")
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&questions, "question", "q", nil, "Question to ask (repeatable)")
	cmd.Flags().BoolVar(&audio, "audio", false, "Narrate each answer and save the audio")
	cmd.Flags().Float64Var(&speed, "speed", 1, "Narration playback rate: 0.75, 1, 1.25 or 1.5")
	return cmd
}
