package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/pipeline"
	"github.com/forPelevin/rushorts/internal/usecase"
)

const runTimeout = 3 * time.Hour

func run(cmd *cobra.Command, input string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	top, _ := cmd.Flags().GetInt("top")
	log := logger.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	r, err := pipeline.New(pipeline.Options{Config: cfg, Log: log})
	if err != nil {
		return err
	}
	res, err := r.Run(ctx, input)
	if err != nil {
		if errors.Is(err, usecase.ErrNoSpeech) {
			log.Warn(ctx, "the video may be music only or in another language than %q", cfg.Processing.Language)
		}
		return err
	}
	return printReport(cmd.OutOrStdout(), res, top)
}
