package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/rushorts/internal/domain/subtitles"
	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/types"
)

var (
	ErrVideoTooLong = errors.New("video is too long")
	ErrNoSpeech     = errors.New("no speech found in video")
)

type Deps struct {
	Video       ports.VideoTool
	Transcriber ports.Transcriber
	Selector    ports.HighlightSelector
	Translator  ports.Translator
	Log         logger.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return Usecase{d: d}
}

type Input struct {
	Video    string
	Language string
	MinDur   time.Duration
	MaxDur   time.Duration
	// MaxVideoDuration of 0 disables the length check.
	MaxVideoDuration time.Duration
	OutDir           string
	Canvas           subtitles.Canvas
}

type Result struct {
	Manifest types.Manifest
}

func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Log

	total, err := u.d.Video.ProbeDuration(ctx, in.Video)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", in.Video, err)
	}
	if in.MaxVideoDuration > 0 && total > in.MaxVideoDuration {
		return Result{}, fmt.Errorf("%w: %s exceeds limit %s", ErrVideoTooLong, total.Round(time.Second), in.MaxVideoDuration)
	}
	log.Info(ctx, "video duration: %s", total.Round(time.Second))

	tr, err := u.d.Transcriber.TranscribeVideo(ctx, in.Video, in.Language)
	if err != nil {
		return Result{}, err
	}
	if !hasSpeech(tr) {
		return Result{}, ErrNoSpeech
	}

	m := types.Manifest{
		Input:      in.Video,
		DurationS:  total.Seconds(),
		Language:   tr.Language,
		Highlights: []types.ManifestHighlight{},
	}

	hs, err := u.d.Selector.Analyze(ctx, tr.Segments, in.MinDur, in.MaxDur)
	if err != nil {
		return Result{}, fmt.Errorf("analyze highlights: %w", err)
	}
	log.Info(ctx, "found %d highlights", len(hs))
	if len(hs) == 0 {
		log.Warn(ctx, "no highlights found in %s; the video may have little speech or not be in %s", in.Video, in.Language)
		return Result{Manifest: m}, nil
	}

	texts := make([]string, len(hs))
	for i, h := range hs {
		texts[i] = h.Text
	}
	trs, err := u.d.Translator.TranslateBatch(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("translate highlights: %w", err)
	}
	if len(trs) != len(hs) {
		return Result{}, fmt.Errorf("translate highlights: got %d results for %d texts", len(trs), len(hs))
	}

	subsDir := filepath.Join(in.OutDir, "subtitles")
	if err := os.MkdirAll(subsDir, 0o755); err != nil {
		return Result{}, err
	}

	for i, h := range hs {
		mh := manifestHighlight(h, trs[i])

		ass := subtitles.RenderLinesASS(mh.SubtitleLines, h.Duration(), in.Canvas)
		rel := filepath.Join("subtitles", h.ID+".ass")
		if err := writeFile(filepath.Join(in.OutDir, rel), []byte(ass)); err != nil {
			return Result{}, err
		}
		mh.Subtitles = filepath.ToSlash(rel)

		// source karaoke track only when word timings cover the range
		if subtitles.HasWordTimings(tr.Segments, h.Start, h.End) {
			src := subtitles.RenderKaraokeASS(tr.Segments, h.Start, h.End, in.Canvas)
			rel := filepath.Join("subtitles", h.ID+".src.ass")
			if err := writeFile(filepath.Join(in.OutDir, rel), []byte(src)); err != nil {
				return Result{}, err
			}
			mh.SubtitlesSource = filepath.ToSlash(rel)
		}

		m.Highlights = append(m.Highlights, mh)
	}
	return Result{Manifest: m}, nil
}

func manifestHighlight(h types.Highlight, tr types.Translation) types.ManifestHighlight {
	textRU := strings.TrimSpace(tr.ScreenText)
	if textRU == "" {
		textRU = h.Text
	}
	tts := strings.TrimSpace(tr.TTSMarkup)
	if tts == "" {
		tts = textRU
	}
	lines := tr.SubtitleLines
	if len(lines) == 0 {
		lines = []string{textRU}
	}
	return types.ManifestHighlight{
		ID:             h.ID,
		StartSec:       h.Start.Seconds(),
		EndSec:         h.End.Seconds(),
		DurationSec:    h.Duration().Seconds(),
		HighlightScore: h.Score,
		Title:          h.Title,
		Reason:         h.Reason,
		Text:           h.Text,
		TextRU:         textRU,
		TextRUTTS:      tts,
		SubtitleLines:  lines,
	}
}

func hasSpeech(tr types.Transcript) bool {
	if strings.TrimSpace(tr.Text) != "" {
		return true
	}
	for _, s := range tr.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

func writeFile(path string, b []byte) error {
	return os.WriteFile(path, b, 0o644)
}
