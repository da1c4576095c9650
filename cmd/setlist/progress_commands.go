package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"setlist/internal/checkpoint"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect or discard saved identification progress",
	}
	progressCmd.AddCommand(newProgressListCommand(ctx))
	progressCmd.AddCommand(newProgressClearCommand(ctx))
	return progressCmd
}

func withProgressStore(cmd *cobra.Command, ctx *commandContext, fn func(context.Context, *checkpoint.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	store, err := checkpoint.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cmd.Context(), store)
}

func newProgressListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings with unfinished runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgressStore(cmd, ctx, func(runCtx context.Context, store *checkpoint.Store) error {
				summaries, err := store.List(runCtx)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, summaries)
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No saved progress")
					return nil
				}
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{
						filepath.Base(s.Path),
						strconv.Itoa(s.Windows),
						strconv.Itoa(s.Identified),
						humanize.Time(s.UpdatedAt),
						s.Path,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Recording", "Windows", "Identified", "Updated", "Path"},
					rows, 1, 2,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print summaries as JSON")
	return cmd
}

func newProgressClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <audio...>",
		Short: "Discard saved progress so the next run starts fresh",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProgressStore(cmd, ctx, func(runCtx context.Context, store *checkpoint.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					path, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve %q: %w", arg, err)
					}
					if err := store.Clear(runCtx, path); err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared progress for %s\n", path)
				}
				return nil
			})
		},
	}
}
