package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/forPelevin/rushorts/internal/config"
	"github.com/forPelevin/rushorts/internal/domain/subtitles"
	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/metrics"
	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/ports/adapters/deepseek"
	"github.com/forPelevin/rushorts/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/rushorts/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/rushorts/internal/services/analyzer"
	"github.com/forPelevin/rushorts/internal/services/transcription"
	"github.com/forPelevin/rushorts/internal/services/translation"
	"github.com/forPelevin/rushorts/internal/types"
	"github.com/forPelevin/rushorts/internal/usecase"
	"github.com/forPelevin/rushorts/pkg/executor"
)

type Options struct {
	Config  *config.Config
	Log     logger.Logger
	Metrics *metrics.Metrics

	// FFmpegPath and FFprobePath default to the binaries on PATH.
	FFmpegPath  string
	FFprobePath string
}

// Runner processes videos with one set of adapters. It is safe for
// concurrent use.
type Runner struct {
	cfg     *config.Config
	uc      usecase.Usecase
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Result struct {
	Manifest     types.Manifest
	RunDir       string
	ManifestPath string
}

// New validates the configuration and wires the adapters.
func New(o Options) (*Runner, error) {
	if o.Config == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := o.Config.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	cfg := o.Config

	client, err := deepseek.New(deepseek.Config{
		APIKey:          cfg.DeepSeek.APIKey,
		BaseURL:         cfg.DeepSeek.BaseURL,
		ChatModel:       cfg.DeepSeek.ChatModel,
		TranscribeModel: cfg.DeepSeek.TranscribeModel,
		Timeout:         cfg.DeepSeek.Timeout(),
		Metrics:         o.Metrics,
		Logger:          o.Log,
	})
	if err != nil {
		return nil, err
	}

	exec := executor.New()
	video := ffmpeg.New(o.FFmpegPath, o.FFprobePath, exec)

	var speech ports.SpeechClient = client
	if cfg.Processing.ASR == config.ASRWhisperCPP {
		speech = whispercpp.New(cfg.Whisper.BinaryPath, cfg.Whisper.ModelPath, cfg.Paths.Temp, exec)
	}
	o.Log.Debug(context.Background(), "asr backend: %s", cfg.Processing.ASR)

	deps := usecase.Deps{
		Video:       video,
		Transcriber: transcription.New(video, speech, cfg.Paths.Temp, o.Log),
		Selector: analyzer.New(client,
			analyzer.WithConcurrency(cfg.Processing.ConcurrentRequests),
			analyzer.WithWindow(cfg.Processing.Window()),
			analyzer.WithLogger(o.Log),
			analyzer.WithMetrics(o.Metrics),
		),
		Translator: translation.New(client,
			translation.WithBatchSize(cfg.Processing.TranslateBatchSize),
			translation.WithLogger(o.Log),
			translation.WithMetrics(o.Metrics),
		),
		Log: o.Log,
	}
	return newRunner(cfg, deps, o.Log, o.Metrics), nil
}

func newRunner(cfg *config.Config, deps usecase.Deps, log logger.Logger, m *metrics.Metrics) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	deps.Log = log
	return &Runner{
		cfg:     cfg,
		uc:      usecase.New(deps),
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// Run processes one video into a fresh run directory under the output root
// and writes manifest.json there.
func (r *Runner) Run(ctx context.Context, input string) (res Result, err error) {
	defer func() {
		if r.metrics == nil {
			return
		}
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		r.metrics.VideosProcessed.WithLabelValues(outcome).Inc()
	}()

	absIn, err := filepath.Abs(input)
	if err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(absIn); err != nil {
		return Result{}, fmt.Errorf("stat input: %w", err)
	}

	r.log.Info(ctx, "preparing workspace")
	if err := os.MkdirAll(r.cfg.Paths.Temp, 0o755); err != nil {
		return Result{}, err
	}
	runDir := buildRunOutDir(r.cfg.Paths.Output, absIn, r.now().UTC())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return Result{}, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rmErr := os.RemoveAll(runDir); rmErr != nil {
			r.log.Warn(ctx, "remove run dir %s: %v", runDir, rmErr)
		}
	}()
	r.log.Info(ctx, "output run dir: %s", runDir)

	out, err := r.uc.Run(ctx, usecase.Input{
		Video:            absIn,
		Language:         r.cfg.Processing.Language,
		MinDur:           r.cfg.Processing.MinSegment(),
		MaxDur:           r.cfg.Processing.MaxSegment(),
		MaxVideoDuration: r.cfg.Processing.MaxVideoDuration(),
		OutDir:           runDir,
		Canvas:           subtitles.Canvas{Width: r.cfg.Video.TargetWidth, Height: r.cfg.Video.TargetHeight},
	})
	if err != nil {
		return Result{}, err
	}

	b, err := json.MarshalIndent(out.Manifest, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(runDir, "manifest.json")
	if err := os.WriteFile(manifestPath, b, 0o644); err != nil {
		return Result{}, err
	}
	r.log.Info(ctx, "manifest written (%d highlights): %s", len(out.Manifest.Highlights), manifestPath)
	return Result{Manifest: out.Manifest, RunDir: runDir, ManifestPath: manifestPath}, nil
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var (
	_ ports.VideoTool         = (*ffmpeg.Adapter)(nil)
	_ ports.SpeechClient      = (*whispercpp.Adapter)(nil)
	_ ports.SpeechClient      = (*deepseek.Client)(nil)
	_ ports.ChatClient        = (*deepseek.Client)(nil)
	_ ports.Transcriber       = (*transcription.Service)(nil)
	_ ports.HighlightSelector = (*analyzer.Analyzer)(nil)
	_ ports.Translator        = (*translation.Translator)(nil)
)
