package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"setlist/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the configuration file",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		targetPath string
		overwrite  bool
	)
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveInitTarget(targetPath, overwrite)
			if err != nil {
				return err
			}
			if err := config.CreateSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set recognition.api_token (or export SETLIST_RECOGNITION_TOKEN) before identifying recordings.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (default: user config dir)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func resolveInitTarget(raw string, overwrite bool) (string, error) {
	var (
		target string
		err    error
	)
	if raw = strings.TrimSpace(raw); raw == "" {
		target, err = config.DefaultConfigPath()
	} else {
		target, err = config.ExpandPath(raw)
	}
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	if overwrite {
		return target, nil
	}
	switch _, err := os.Stat(target); {
	case err == nil:
		return "", fmt.Errorf("%s already exists (pass --overwrite to replace it)", target)
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("check config path: %w", err)
	}
	return target, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and summarize the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configSeen {
				fmt.Fprintln(out, "File not found; built-in defaults apply")
			}
			printEffectiveSettings(out, cfg)
			if err := cfg.ValidateRecognition(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func printEffectiveSettings(out io.Writer, cfg *config.Config) {
	fmt.Fprintf(out, "  Windows:       %s every %s\n", cfg.WindowLength(), cfg.WindowStep())
	fmt.Fprintf(out, "  Call delay:    %s\n", cfg.InterCallDelay())
	fmt.Fprintf(out, "  Attempts:      %d per window\n", cfg.Pacing.MaxAttempts)
	fmt.Fprintf(out, "  State dir:     %s\n", cfg.Paths.StateDir)
	corrections := "disabled"
	if cfg.Corrections.Enabled {
		corrections = cfg.Corrections.Path
	}
	fmt.Fprintf(out, "  Corrections:   %s\n", corrections)
	notify := "disabled"
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		notify = topic
	}
	fmt.Fprintf(out, "  Notifications: %s\n", notify)
}
