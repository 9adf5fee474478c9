package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/vidbrief/internal/pipeline"
)

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [video]",
		Short: "Transcribe a video (or load a transcript) and write a timestamped summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return run(cmd, input)
		},
	}

	// Visible flags
	cmd.Flags().String("transcript", "", "Summarize an existing transcript (.json, .vtt, .srt) instead of a video")
	cmd.Flags().Bool("demo", false, "Summarize a generated demo transcript")
	cmd.Flags().Duration("demo-duration", pipeline.DefaultDemoDuration, "Length of the demo transcript")
	cmd.Flags().String("title", "", "Title (default: input file name)")
	cmd.Flags().String("out", "out", "Output directory")
	cmd.Flags().String("cache", ".cache", "Cache directory")
	cmd.Flags().Bool("copy", false, "Copy the Markdown summary to the clipboard")
	cmd.Flags().String("mode", "auto", "Summary mode: auto, local or external")
	cmd.Flags().String("store", "", `Run database path, or "off"`)
	cmd.Flags().String("engine", "whisper", "Speech recognizer: whisper or http")
	cmd.Flags().String("lang", "auto", "Spoken language passed to the recognizer")

	// Hidden tuning flag (internal)
	cmd.Flags().Int("max-segments", 25, "Upper bound on summary points")
	_ = cmd.Flags().MarkHidden("max-segments")
	return cmd
}

func run(cmd *cobra.Command, input string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	transcript, _ := cmd.Flags().GetString("transcript")
	demo, _ := cmd.Flags().GetBool("demo")
	demoDur, _ := cmd.Flags().GetDuration("demo-duration")
	title, _ := cmd.Flags().GetString("title")
	copyOut, _ := cmd.Flags().GetBool("copy")

	if input != "" {
		if input, err = filepath.Abs(input); err != nil {
			return err
		}
	}

	cfg := pipeline.Config{
		Input:          input,
		TranscriptPath: transcript,
		Demo:           demo,
		DemoDuration:   demoDur,
		Title:          title,
		Copy:           copyOut,
		Settings:       settings,
		Logf:           stderrLogf(cmd),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Hour)
	defer cancel()

	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.RunDir)
	return nil
}
