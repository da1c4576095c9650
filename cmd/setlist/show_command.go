package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"setlist/internal/tracklist"
)

func newShowCommand() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:         "show <tracklist.md>",
		Short:       "Print a saved tracklist",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			tl, err := tracklist.Load(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if jsonOutput {
				data, err := tracklist.MarshalSidecar(tl)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tracklist: %s\n", tl.SourceFile)
			if tl.GeneratedOn != "" {
				fmt.Fprintf(out, "Generated: %s\n", tl.GeneratedOn)
			}
			if tl.Duration > 0 {
				fmt.Fprintf(out, "Duration:  %s\n", tracklist.FormatTimestamp(tl.Duration))
			}
			if len(tl.Active()) == 0 {
				fmt.Fprintln(out, "No tracks")
				return nil
			}
			fmt.Fprintln(out, renderTrackTable(tl))
			fmt.Fprintf(out, "%d tracks, %d identified\n", len(tl.Active()), tl.Identified())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the tracklist as JSON")
	return cmd
}
