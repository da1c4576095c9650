package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"setlist/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check tools, directories, and credentials needed for identification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			printer := newStatusPrinter(cmd.OutOrStdout())

			printer.section("Tools")
			tools := preflight.FromDeps(preflight.CheckSystemDeps(cfg, false))
			renderResults(printer, tools)

			printer.section("Environment")
			var env []preflight.Result
			if offline {
				env = preflight.RunLocal(cfg)
			} else {
				env = preflight.RunAll(cmd.Context(), cfg)
			}
			renderResults(printer, env)

			failed := len(preflight.Failed(tools)) + len(preflight.Failed(env))
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the recognition service reachability probe")
	return cmd
}

func renderResults(printer *statusPrinter, results []preflight.Result) {
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		printer.line(r.Name, kind, r.Detail)
	}
}
