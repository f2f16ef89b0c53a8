package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/pdf-insights/internal/prefs"
)

func themeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "theme [light|dark|toggle]",
		Short:     "Show or change the persisted color theme",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(prefs.ThemeLight), string(prefs.ThemeDark), "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p := e.app.Prefs
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				fmt.Fprintln(w, p.Theme())
				return nil
			}
			if args[0] == "toggle" {
				t, err := p.Toggle()
				if err != nil {
					return err
				}
				fmt.Fprintln(w, t)
				return nil
			}
			t, err := prefs.ParseTheme(args[0])
			if err != nil {
				return err
			}
			if err := p.SetTheme(t); err != nil {
				return err
			}
			fmt.Fprintln(w, t)
			return nil
		},
	}
	return cmd
}
