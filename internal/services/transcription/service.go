package transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/types"
)

const DefaultLanguage = "en"

// Service extracts audio from a video and sends it to a speech client.
type Service struct {
	video   ports.VideoTool
	speech  ports.SpeechClient
	tempDir string
	log     logger.Logger
}

func New(video ports.VideoTool, speech ports.SpeechClient, tempDir string, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{video: video, speech: speech, tempDir: tempDir, log: log}
}

// TranscribeVideo always removes the intermediate WAV, also on failure.
func (s *Service) TranscribeVideo(ctx context.Context, videoPath, language string) (tr types.Transcript, err error) {
	if language == "" {
		language = DefaultLanguage
	}
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return types.Transcript{}, err
	}
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	// one directory per call: same-stem inputs may run concurrently
	workDir, err := os.MkdirTemp(s.tempDir, stem+"-*")
	if err != nil {
		return types.Transcript{}, fmt.Errorf("create temp dir: %w", err)
	}
	audioPath := filepath.Join(workDir, stem+"_ds.wav")

	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log.Warn(ctx, "remove temp audio %s: %v", workDir, rmErr)
		}
		if err != nil {
			s.log.Error(ctx, "error transcribing video %s: %v", videoPath, err)
		}
	}()

	if err := s.video.ExtractAudioMono16k(ctx, videoPath, audioPath); err != nil {
		return types.Transcript{}, err
	}

	s.log.Info(ctx, "sending audio (%s) to transcription", audioPath)
	res, err := s.speech.Transcribe(ctx, audioPath, ports.TranscribeOptions{Language: language})
	if err != nil {
		return types.Transcript{}, fmt.Errorf("transcribe %s: %w", videoPath, err)
	}

	tr = Normalize(res)
	if tr.Language == "" {
		tr.Language = language
	}
	s.log.Info(ctx, "transcription complete: %d segments", len(tr.Segments))
	return tr, nil
}

// Normalize converts a remote response into the internal transcript shape.
// A response without segments becomes one segment spanning the whole duration.
func Normalize(res ports.SpeechResult) types.Transcript {
	segs := make([]types.Segment, 0, len(res.Segments))
	for i, s := range res.Segments {
		words := cleanWords(s.Words)
		if len(words) == 0 && len(res.Words) > 0 {
			words = wordsWithin(res.Words, s.Start, s.End, i == len(res.Segments)-1)
		}
		segs = append(segs, types.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
			Words: words,
		})
	}

	if len(segs) == 0 {
		segs = append(segs, types.Segment{
			Start: 0,
			End:   res.Duration,
			Text:  strings.TrimSpace(res.Text),
		})
	}

	text := res.Text
	if strings.TrimSpace(text) == "" {
		parts := make([]string, 0, len(segs))
		for _, s := range segs {
			parts = append(parts, s.Text)
		}
		text = strings.Join(parts, " ")
	}

	return types.Transcript{
		Segments: segs,
		Text:     strings.TrimSpace(text),
		Language: res.Language,
		Duration: res.Duration,
	}
}

func cleanWords(in []types.Word) []types.Word {
	var out []types.Word
	for _, w := range in {
		txt := strings.TrimSpace(w.Word)
		if txt == "" {
			continue
		}
		out = append(out, types.Word{Start: w.Start, End: w.End, Word: txt})
	}
	return out
}

// wordsWithin picks words whose midpoint lies in [start, end); the last
// segment also takes its end boundary.
func wordsWithin(words []types.Word, start, end float64, inclusiveEnd bool) []types.Word {
	var out []types.Word
	for _, w := range words {
		mid := (w.Start + w.End) / 2
		if mid < start {
			continue
		}
		if mid > end || (mid == end && !inclusiveEnd) {
			continue
		}
		txt := strings.TrimSpace(w.Word)
		if txt == "" {
			continue
		}
		out = append(out, types.Word{Start: w.Start, End: w.End, Word: txt})
	}
	return out
}
