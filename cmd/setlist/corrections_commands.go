package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"setlist/internal/corrections"
	"setlist/internal/tracklist"
)

func newCorrectionsCommand(ctx *commandContext) *cobra.Command {
	correctionsCmd := &cobra.Command{
		Use:   "corrections",
		Short: "Manage learned corrections for misidentified tracks",
	}
	correctionsCmd.AddCommand(newCorrectionsListCommand(ctx))
	correctionsCmd.AddCommand(newCorrectionsAddCommand(ctx))
	correctionsCmd.AddCommand(newCorrectionsRemoveCommand(ctx))
	correctionsCmd.AddCommand(newCorrectionsLearnCommand(ctx))
	return correctionsCmd
}

func correctionStore(ctx *commandContext) (*corrections.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, err
	}
	return corrections.NewStore(cfg.Corrections.Path, logger), nil
}

func newCorrectionsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learned corrections, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := correctionStore(ctx)
			if err != nil {
				return err
			}
			rules := store.List()
			if jsonOutput {
				return writeJSON(cmd, rules)
			}
			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintf(out, "No corrections in %s\n", store.Path())
				return nil
			}
			rows := make([][]string, 0, len(rules))
			for _, rule := range rules {
				rows = append(rows, []string{
					rule.OriginalArtist + " - " + rule.OriginalTitle,
					rule.Artist + " - " + rule.Title,
					humanize.Time(rule.CorrectedAt),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Identified as", "Corrected to", "Learned"}, rows))
			fmt.Fprintf(out, "%d correction(s) in %s\n", len(rules), store.Path())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print corrections as JSON")
	return cmd
}

func newCorrectionsAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "add <identified artist> <identified title> <artist> <title>",
		Short:   "Record a correction applied to future identifications",
		Example: `  setlist corrections add "Unknown Artst" "Track Nme" "Known Artist" "Track Name"`,
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := correctionStore(ctx)
			if err != nil {
				return err
			}
			rule, err := store.Add(args[0], args[1], args[2], args[3])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Learned: %s - %s -> %s - %s\n",
				rule.OriginalArtist, rule.OriginalTitle, rule.Artist, rule.Title)
			return nil
		},
	}
}

func newCorrectionsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <identified artist> <identified title>",
		Short: "Forget a learned correction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := correctionStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Remove(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed correction for %s - %s\n", args[0], args[1])
			return nil
		},
	}
}

func newCorrectionsLearnCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "learn <tracklist.md>",
		Short: "Learn corrections from a hand-edited tracklist",
		Long: `Learn compares an edited Markdown tracklist with the JSON sidecar written
when it was generated. Every identified track whose artist or title was changed
becomes a correction; reverting an edit forgets it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mdPath := strings.TrimSpace(args[0])
			generated, edited, err := loadEditedTracklist(mdPath)
			if err != nil {
				return err
			}
			store, err := correctionStore(ctx)
			if err != nil {
				return err
			}
			rules, err := corrections.Learn(store, generated.Tracks, edited.Tracks)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rule := range rules {
				fmt.Fprintf(out, "Learned: %s - %s -> %s - %s\n",
					rule.OriginalArtist, rule.OriginalTitle, rule.Artist, rule.Title)
			}
			fmt.Fprintf(out, "%d correction(s) learned from %s\n", len(rules), filepath.Base(mdPath))
			return nil
		},
	}
}

// loadEditedTracklist reads the generated sidecar and the Markdown file that
// sits beside it.
func loadEditedTracklist(mdPath string) (generated, edited tracklist.Tracklist, err error) {
	jsonPath := strings.TrimSuffix(mdPath, filepath.Ext(mdPath)) + ".json"
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return generated, edited, fmt.Errorf("read generated tracklist %s: %w", jsonPath, err)
	}
	if generated, err = tracklist.UnmarshalSidecar(data); err != nil {
		return generated, edited, err
	}
	file, err := os.Open(mdPath)
	if err != nil {
		return generated, edited, fmt.Errorf("open tracklist: %w", err)
	}
	defer file.Close()
	edited, err = tracklist.ParseMarkdown(file)
	return generated, edited, err
}
