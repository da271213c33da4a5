package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/rushorts/pkg/executor"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	exec    executor.Executor
}

func New(ffmpegPath, ffprobePath string, exec executor.Executor) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if exec == nil {
		exec = executor.New()
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, exec: exec}
}

// ExtractAudioMono16k writes 16 kHz mono PCM s16le WAV, overwriting outWav.
func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error {
	_, err := a.exec.Execute(ctx, a.ffmpeg,
		"-y",
		"-loglevel", "error",
		"-i", inVideo,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w", err)
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error) {
	out, err := a.exec.Execute(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inVideo,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	s := strings.TrimSpace(out)
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}
