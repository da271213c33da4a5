package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/forPelevin/rushorts/internal/config"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rushorts <video>",
		Short:        "Find highlights in a long English video and adapt them for Russian shorts",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0])
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// Shared with watch. Flags only override the config file and env when set.
	def := config.Default()
	pf := root.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("out", def.Paths.Output, "Output directory")
	pf.Float64("min", def.Processing.MinSegmentSec, "Min highlight duration seconds")
	pf.Float64("max", def.Processing.MaxSegmentSec, "Max highlight duration seconds")
	pf.String("language", def.Processing.Language, "Spoken language of the input")
	pf.String("log-level", def.Logging.Level, "Log level: debug, info, warn, error")
	pf.String("asr", def.Processing.ASR, "Transcription backend: deepseek or whispercpp")

	root.Flags().Int("top", 10, "Highlights shown in the report")

	root.AddCommand(newWatchCmd())
	return root
}

// loadConfig layers flags over the config file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if f.Changed("out") {
		cfg.Paths.Output, _ = f.GetString("out")
	}
	if f.Changed("min") {
		cfg.Processing.MinSegmentSec, _ = f.GetFloat64("min")
	}
	if f.Changed("max") {
		cfg.Processing.MaxSegmentSec, _ = f.GetFloat64("max")
	}
	if f.Changed("language") {
		cfg.Processing.Language, _ = f.GetString("language")
	}
	if f.Changed("log-level") {
		cfg.Logging.Level, _ = f.GetString("log-level")
	}
	if f.Changed("asr") {
		cfg.Processing.ASR, _ = f.GetString("asr")
	}
	return cfg, nil
}
