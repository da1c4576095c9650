package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"setlist/internal/audio"
	"setlist/internal/checkpoint"
	"setlist/internal/config"
	"setlist/internal/corrections"
	"setlist/internal/deps"
	"setlist/internal/logging"
	"setlist/internal/notifications"
	"setlist/internal/pipeline"
	"setlist/internal/preflight"
	"setlist/internal/recognition"
	"setlist/internal/services"
	"setlist/internal/tracklist"
)

type identifyOptions struct {
	outputDir  string
	delay      int
	window     int
	step       int
	noResume   bool
	noLearn    bool
	jsonOutput bool
}

// identifyReport is the per-recording entry of --json output.
type identifyReport struct {
	Path         string `json:"path"`
	Status       string `json:"status"`
	RunID        string `json:"run_id,omitempty"`
	Windows      int    `json:"windows"`
	Resumed      int    `json:"resumed_windows"`
	Queried      int    `json:"queried_windows"`
	Failed       int    `json:"failed_windows"`
	Tracks       int    `json:"tracks"`
	Identified   int    `json:"identified"`
	MarkdownPath string `json:"markdown_path,omitempty"`
	JSONPath     string `json:"json_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var opts identifyOptions
	cmd := &cobra.Command{
		Use:   "identify <paths...>",
		Short: "Identify the tracks in audio files or directories",
		Long: `Identify samples each recording in fixed windows, asks the recognition
service about every window, and writes a Markdown tracklist plus a JSON sidecar.

Progress is saved after every window. Interrupting with Ctrl-C keeps it, and
running the same command again resumes where it stopped.`,
		Example: `  setlist identify recording.mp3
  setlist set1.mp3 set2.mp3 --delay 20
  setlist identify ~/dj_sets/ -o ./tracklists/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentify(cmd, ctx, opts, args)
		},
	}
	bindIdentifyFlags(cmd, &opts)
	return cmd
}

func bindIdentifyFlags(cmd *cobra.Command, opts *identifyOptions) {
	flags := cmd.Flags()
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for tracklist files (default: beside each recording)")
	flags.IntVarP(&opts.delay, "delay", "d", 0, "Seconds between recognition calls (default from config)")
	flags.IntVar(&opts.window, "window", 0, "Sample window length in seconds (default from config)")
	flags.IntVar(&opts.step, "step", 0, "Seconds between window starts; below --window overlaps (default from config)")
	flags.BoolVar(&opts.noResume, "no-resume", false, "Discard saved progress and start fresh")
	flags.BoolVar(&opts.noLearn, "no-learn", false, "Do not apply learned corrections")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print a JSON summary instead of tables")
}

// apply returns a copy of cfg with the command-line overrides applied.
func (o identifyOptions) apply(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	local := *cfg
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		dir, err := config.ExpandPath(strings.TrimSpace(o.outputDir))
		if err != nil {
			return nil, fmt.Errorf("resolve output directory: %w", err)
		}
		local.Paths.OutputDir = dir
	}
	if flags.Changed("delay") {
		local.Pacing.DelaySeconds = o.delay
	}
	if flags.Changed("window") {
		local.Sampling.WindowSeconds = o.window
		if !flags.Changed("step") && local.Sampling.StepSeconds > o.window {
			local.Sampling.StepSeconds = 0
		}
	}
	if flags.Changed("step") {
		local.Sampling.StepSeconds = o.step
	}
	if err := local.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "identify", "apply flags", err.Error(), nil)
	}
	if err := local.ValidateRecognition(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "identify", "validate", err.Error(), nil)
	}
	return &local, nil
}

func runIdentify(cmd *cobra.Command, ctx *commandContext, opts identifyOptions, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	runCfg, err := opts.apply(cmd, cfg)
	if err != nil {
		return err
	}

	files, err := audio.Collect(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no audio files found")
	}
	if missing := deps.Missing(preflight.CheckSystemDeps(runCfg, allWAV(files))); len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "identify", "check dependencies", describeMissing(missing), nil)
	}

	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	store, err := checkpoint.Open(runCfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client := recognition.NewClient(recognition.Config{
		BaseURL:        runCfg.Recognition.BaseURL,
		APIToken:       runCfg.Recognition.APIToken,
		ReturnFields:   runCfg.Recognition.ReturnFields,
		TimeoutSeconds: runCfg.Recognition.TimeoutSeconds,
		RateLimitCodes: runCfg.Recognition.RateLimitCodes,
	})

	stderr := cmd.ErrOrStderr()
	bar := newWindowProgress(stderr, !opts.jsonOutput && isTerminal(stderr))
	controller, err := pipeline.NewFromConfig(runCfg, store, client, correctionLookup(runCfg, opts.noLearn, logger), logger, bar)
	if err != nil {
		return err
	}

	notifier := notifications.NewService(runCfg)
	notify := func(event notifications.Event, payload notifications.Payload) {
		if err := notifier.Publish(cmd.Context(), event, payload); err != nil {
			logging.WarnWithContext(logger, "notification failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "identification results are unaffected"))
		}
	}

	runCtx, stop := signalContext(cmd.Context())
	defer stop()
	started := time.Now()

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		out = io.Discard
	}
	printer := newStatusPrinter(out)
	printBatchHeader(printer, runCfg, opts, len(files))

	reports := make([]identifyReport, 0, len(files))
	var failures int
	var interrupted error
	for i, path := range files {
		fmt.Fprintf(out, "\n[%d/%d] %s%s\n", i+1, len(files), filepath.Base(path), sizeSuffix(path))

		var mdPath, jsonPath string
		job := pipeline.Job{
			Path:  path,
			Fresh: opts.noResume,
			Output: func(tl tracklist.Tracklist) error {
				var err error
				mdPath, jsonPath, err = tracklist.Write(tl, path, runCfg.Paths.OutputDir)
				return err
			},
		}
		res, runErr := controller.Run(runCtx, job)
		bar.finish(res.Status == services.RunCompleted)
		report := identifyReport{
			Path:    path,
			Status:  string(res.Status),
			RunID:   res.RunID,
			Windows: res.Windows,
			Resumed: res.Resumed,
			Queried: res.Queried,
			Failed:  res.Failed,
		}

		switch res.Status {
		case services.RunCompleted:
			report.Tracks = len(res.Tracklist.Active())
			report.Identified = res.Tracklist.Identified()
			report.MarkdownPath = mdPath
			report.JSONPath = jsonPath
			printCompleted(out, printer, res, mdPath)
			notify(notifications.EventRecordingCompleted, notifications.Payload{
				"recording":  filepath.Base(path),
				"tracks":     report.Tracks,
				"identified": report.Identified,
			})
		case services.RunInterrupted:
			interrupted = runErr
			report.Error = "interrupted"
			done := res.Resumed + res.Queried
			printer.line("Interrupted", statusWarn,
				fmt.Sprintf("%d/%d windows saved; run the same command again to resume", done, res.Windows))
		default:
			failures++
			if runErr != nil {
				report.Error = runErr.Error()
			}
			printer.line("Failed", statusError, report.Error)
			notify(notifications.EventRecordingFailed, notifications.Payload{
				"recording": filepath.Base(path),
				"error":     report.Error,
			})
			switch {
			case errors.Is(runErr, services.ErrSourceIdentityMismatch):
				printer.line("Hint", statusInfo, "rerun with --no-resume to discard the saved progress")
			case errors.Is(runErr, services.ErrOutput):
				printer.line("Hint", statusInfo, "progress kept; fix the output location and rerun to write the tracklist without new recognition calls")
			}
		}
		reports = append(reports, report)
		if interrupted != nil {
			break
		}
	}

	if interrupted == nil && len(files) > 1 {
		notify(notifications.EventBatchCompleted, notifications.Payload{
			"processed": len(files) - failures,
			"failed":    failures,
			"duration":  time.Since(started),
		})
	}
	if opts.jsonOutput {
		if err := writeJSON(cmd, reports); err != nil {
			return err
		}
	}
	if interrupted != nil {
		return interrupted
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d recordings failed", failures, len(files))
	}
	return nil
}

func correctionLookup(cfg *config.Config, disabled bool, logger *slog.Logger) corrections.Lookup {
	if disabled || !cfg.Corrections.Enabled {
		return corrections.Nop{}
	}
	return corrections.NewStore(cfg.Corrections.Path, logger)
}

func printBatchHeader(printer *statusPrinter, cfg *config.Config, opts identifyOptions, files int) {
	printer.section(fmt.Sprintf("Identifying %d recording(s)", files))
	printer.line("Window", statusInfo, fmt.Sprintf("%s every %s", cfg.WindowLength(), cfg.WindowStep()))
	printer.line("Delay between calls", statusInfo, cfg.InterCallDelay().String())
	if cfg.Paths.OutputDir != "" {
		printer.line("Output directory", statusInfo, cfg.Paths.OutputDir)
	}
	switch {
	case opts.noLearn || !cfg.Corrections.Enabled:
		printer.line("Corrections", statusInfo, "disabled")
	default:
		printer.line("Corrections", statusInfo, "applying learned corrections")
	}
	if opts.noResume {
		printer.line("Resume", statusWarn, "saved progress will be discarded")
	}
}

func printCompleted(out io.Writer, printer *statusPrinter, res pipeline.Result, mdPath string) {
	tl := res.Tracklist
	fmt.Fprintln(out, renderTrackTable(tl))
	summary := fmt.Sprintf("%d tracks, %d identified", len(tl.Active()), tl.Identified())
	if res.Resumed > 0 {
		summary += fmt.Sprintf(", %d windows resumed", res.Resumed)
	}
	if res.Failed > 0 {
		printer.line("Windows", statusWarn, fmt.Sprintf("%d of %d could not be identified because of errors", res.Failed, res.Windows))
	}
	printer.line("Completed", statusOK, summary)
	printer.line("Saved", statusOK, mdPath)
}

func allWAV(paths []string) bool {
	for _, path := range paths {
		if !strings.EqualFold(filepath.Ext(path), ".wav") {
			return false
		}
	}
	return true
}

func describeMissing(missing []deps.Status) string {
	parts := make([]string, 0, len(missing))
	for _, status := range missing {
		parts = append(parts, fmt.Sprintf("%s (%s)", status.Name, status.Detail))
	}
	return "missing required tools: " + strings.Join(parts, ", ")
}

func sizeSuffix(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return " (" + humanize.Bytes(uint64(info.Size())) + ")"
}
