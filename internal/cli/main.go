package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/vidbrief/internal/config"
	"github.com/forPelevin/vidbrief/internal/types"
)

var version = "dev"

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, types.Describe(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vidbrief",
		Short:        "Timestamped summaries of videos and transcripts",
		Version:      version,
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")

	root.AddCommand(
		newSummarizeCmd(),
		newServeCmd(),
		newMCPCmd(),
		newBrowseCmd(),
		newRunsCmd(),
	)
	return root
}

// loadSettings layers defaults, the config file, the environment and the
// command's own flags, in that order.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	s, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	s.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("out", &s.OutDir)
	str("cache", &s.CacheDir)
	str("mode", &s.Summary.Mode)
	str("store", &s.Store)
	str("engine", &s.Recognizer.Engine)
	str("lang", &s.Recognizer.Language)
	str("addr", &s.ServerAddr)
	str("mpv", &s.MPVSocket)
	if flags.Lookup("max-segments") != nil && flags.Changed("max-segments") {
		s.Segments.Max, _ = flags.GetInt("max-segments")
	}
	s.Normalize()
	return s, nil
}

// stderrLogf prefixes progress lines the way every command prints them.
func stderrLogf(cmd *cobra.Command) func(format string, args ...any) {
	w := cmd.ErrOrStderr()
	return func(format string, args ...any) {
		fmt.Fprintf(w, "[vidbrief] "+format+"\n", args...)
	}
}
