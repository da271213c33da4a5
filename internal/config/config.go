package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/ports/adapters/deepseek"
)

const (
	ASRDeepSeek   = "deepseek"
	ASRWhisperCPP = "whispercpp"
)

var ErrMissingAPIKey = errors.New("DEEPSEEK_API_KEY is not configured; set it in your environment or .env file")

type Config struct {
	DeepSeek   DeepSeekConfig   `yaml:"deepseek"`
	Processing ProcessingConfig `yaml:"processing"`
	Video      VideoConfig      `yaml:"video"`
	Paths      PathsConfig      `yaml:"paths"`
	Whisper    WhisperConfig    `yaml:"whisper"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type DeepSeekConfig struct {
	APIKey          string   `yaml:"api_key"`
	BaseURL         string   `yaml:"base_url"`
	AllowedHosts    []string `yaml:"allowed_hosts"`
	ChatModel       string   `yaml:"chat_model"`
	TranscribeModel string   `yaml:"transcribe_model"`
	TimeoutSec      float64  `yaml:"timeout_sec"`
}

func (d DeepSeekConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSec * float64(time.Second))
}

type ProcessingConfig struct {
	ASR                 string  `yaml:"asr"`
	Language            string  `yaml:"language"`
	MinSegmentSec       float64 `yaml:"min_segment_sec"`
	MaxSegmentSec       float64 `yaml:"max_segment_sec"`
	MaxVideoDurationSec float64 `yaml:"max_video_duration_sec"`
	ConcurrentRequests  int     `yaml:"highlight_concurrent_requests"`
	WindowSec           float64 `yaml:"highlight_window_sec"`
	TranslateBatchSize  int     `yaml:"translate_batch_size"`
}

func (p ProcessingConfig) MinSegment() time.Duration { return seconds(p.MinSegmentSec) }
func (p ProcessingConfig) MaxSegment() time.Duration { return seconds(p.MaxSegmentSec) }
func (p ProcessingConfig) MaxVideoDuration() time.Duration {
	return seconds(p.MaxVideoDurationSec)
}
func (p ProcessingConfig) Window() time.Duration { return seconds(p.WindowSec) }

// VideoConfig describes the vertical target handed to the external renderer.
type VideoConfig struct {
	TargetWidth  int `yaml:"target_width"`
	TargetHeight int `yaml:"target_height"`
}

type PathsConfig struct {
	Temp   string `yaml:"temp"`
	Output string `yaml:"output"`
}

type WhisperConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		DeepSeek: DeepSeekConfig{
			BaseURL:         deepseek.DefaultBaseURL,
			ChatModel:       "deepseek-chat",
			TranscribeModel: "deepseek-speech",
			TimeoutSec:      120,
		},
		Processing: ProcessingConfig{
			ASR:                 ASRDeepSeek,
			Language:            "en",
			MinSegmentSec:       20,
			MaxSegmentSec:       180,
			MaxVideoDurationSec: 7200,
			ConcurrentRequests:  5,
			WindowSec:           600,
			TranslateBatchSize:  20,
		},
		Video: VideoConfig{TargetWidth: 1080, TargetHeight: 1920},
		Paths: PathsConfig{Temp: ".cache", Output: "out"},
		Whisper: WhisperConfig{
			BinaryPath: ".cache/bin/whisper.cpp",
			ModelPath:  ".cache/models/ggml-base.bin",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads defaults, then the optional YAML file at path, then the process
// environment. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = f
		return nil
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("env %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("DEEPSEEK_API_KEY", &c.DeepSeek.APIKey)
	str("DEEPSEEK_BASE_URL", &c.DeepSeek.BaseURL)
	str("DEEPSEEK_CHAT_MODEL", &c.DeepSeek.ChatModel)
	str("DEEPSEEK_TRANSCRIBE_MODEL", &c.DeepSeek.TranscribeModel)
	str("LOG_LEVEL", &c.Logging.Level)
	if v, ok := lookup("DEEPSEEK_ALLOWED_HOSTS"); ok && strings.TrimSpace(v) != "" {
		c.DeepSeek.AllowedHosts = strings.Split(v, ",")
	}

	if err := num("DEEPSEEK_TIMEOUT", &c.DeepSeek.TimeoutSec); err != nil {
		return err
	}
	if err := num("MAX_VIDEO_DURATION", &c.Processing.MaxVideoDurationSec); err != nil {
		return err
	}
	return integer("HIGHLIGHT_CONCURRENT_REQUESTS", &c.Processing.ConcurrentRequests)
}

func (c *Config) Validate() error {
	if err := c.DeepSeek.Validate(); err != nil {
		return fmt.Errorf("deepseek: %w", err)
	}
	if err := c.Processing.Validate(); err != nil {
		return fmt.Errorf("processing: %w", err)
	}
	if c.Processing.ASR == ASRWhisperCPP && c.Whisper.ModelPath == "" {
		return fmt.Errorf("whisper: model_path is required for the whispercpp backend")
	}
	if c.Video.TargetWidth <= 0 || c.Video.TargetHeight <= 0 {
		return fmt.Errorf("video: target size must be positive, got %dx%d", c.Video.TargetWidth, c.Video.TargetHeight)
	}
	if !logger.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	return nil
}

func (d *DeepSeekConfig) Validate() error {
	if strings.TrimSpace(d.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if d.TimeoutSec <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", d.TimeoutSec)
	}
	if d.ChatModel == "" {
		return fmt.Errorf("chat_model is required")
	}
	return deepseek.ValidateBaseURL(d.BaseURL, d.AllowedHosts)
}

func (p *ProcessingConfig) Validate() error {
	switch p.ASR {
	case ASRDeepSeek, ASRWhisperCPP:
	default:
		return fmt.Errorf("unknown asr backend %q", p.ASR)
	}
	if p.MinSegmentSec <= 0 {
		return fmt.Errorf("min segment must be > 0")
	}
	if p.MaxSegmentSec < p.MinSegmentSec {
		return fmt.Errorf("min segment must be <= max segment")
	}
	if p.MaxVideoDurationSec <= 0 {
		return fmt.Errorf("max video duration must be > 0")
	}
	if p.ConcurrentRequests < 1 {
		return fmt.Errorf("highlight concurrent requests must be >= 1, got %d", p.ConcurrentRequests)
	}
	if p.WindowSec < p.MaxSegmentSec {
		return fmt.Errorf("highlight window must be >= max segment")
	}
	if p.TranslateBatchSize < 1 {
		return fmt.Errorf("translate batch size must be >= 1")
	}
	return nil
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
