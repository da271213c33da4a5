package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "DEEPSEEK_CHAT_MODEL", "DEEPSEEK_TRANSCRIBE_MODEL",
	"DEEPSEEK_ALLOWED_HOSTS", "DEEPSEEK_TIMEOUT", "MAX_VIDEO_DURATION", "HIGHLIGHT_CONCURRENT_REQUESTS",
	"LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() *Config {
	cfg := Default()
	cfg.DeepSeek.APIKey = "sk-test"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DeepSeek.BaseURL != "https://api.deepseek.com/v1" || cfg.DeepSeek.ChatModel != "deepseek-chat" {
		t.Fatalf("unexpected deepseek defaults %+v", cfg.DeepSeek)
	}
	if cfg.DeepSeek.Timeout() != 120*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.DeepSeek.Timeout())
	}
	p := cfg.Processing
	if p.MinSegment() != 20*time.Second || p.MaxSegment() != 3*time.Minute || p.MaxVideoDuration() != 2*time.Hour {
		t.Fatalf("unexpected processing defaults %+v", p)
	}
	if p.ConcurrentRequests != 5 || p.Window() != 10*time.Minute || p.TranslateBatchSize != 20 {
		t.Fatalf("unexpected processing defaults %+v", p)
	}
	if cfg.Video.TargetWidth != 1080 || cfg.Video.TargetHeight != 1920 {
		t.Fatalf("unexpected target %+v", cfg.Video)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(mapLookup(map[string]string{
		"DEEPSEEK_API_KEY":              " sk-env ",
		"DEEPSEEK_BASE_URL":             "https://proxy.internal/v1",
		"DEEPSEEK_ALLOWED_HOSTS":        "proxy.internal, api.deepseek.com",
		"DEEPSEEK_TIMEOUT":              "30",
		"MAX_VIDEO_DURATION":            "600",
		"HIGHLIGHT_CONCURRENT_REQUESTS": "3",
		"LOG_LEVEL":                     "debug",
		"DEEPSEEK_CHAT_MODEL":           "",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.DeepSeek.APIKey != "sk-env" || cfg.DeepSeek.BaseURL != "https://proxy.internal/v1" {
		t.Fatalf("unexpected deepseek %+v", cfg.DeepSeek)
	}
	if len(cfg.DeepSeek.AllowedHosts) != 2 {
		t.Fatalf("unexpected allowed hosts %v", cfg.DeepSeek.AllowedHosts)
	}
	if cfg.DeepSeek.ChatModel != "deepseek-chat" {
		t.Fatalf("empty env must not override, got %q", cfg.DeepSeek.ChatModel)
	}
	if cfg.DeepSeek.TimeoutSec != 30 || cfg.Processing.MaxVideoDurationSec != 600 || cfg.Processing.ConcurrentRequests != 3 {
		t.Fatalf("numeric env not applied: %+v %+v", cfg.DeepSeek, cfg.Processing)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level %q", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected allowlisted proxy to validate, got %v", err)
	}
}

func TestApplyEnv_ParseErrors(t *testing.T) {
	for _, key := range []string{"DEEPSEEK_TIMEOUT", "MAX_VIDEO_DURATION", "HIGHLIGHT_CONCURRENT_REQUESTS"} {
		t.Run(key, func(t *testing.T) {
			err := Default().ApplyEnv(mapLookup(map[string]string{key: "abc"}))
			if err == nil || !strings.Contains(err.Error(), "env "+key) {
				t.Fatalf("expected parse error naming %s, got %v", key, err)
			}
		})
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rushorts.yaml")
	data := `
deepseek:
  api_key: sk-file
  chat_model: file-chat
processing:
  min_segment_sec: 15
  translate_batch_size: 5
paths:
  output: clips
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEEPSEEK_CHAT_MODEL", "env-chat")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DeepSeek.APIKey != "sk-file" || cfg.DeepSeek.ChatModel != "env-chat" {
		t.Fatalf("unexpected deepseek %+v", cfg.DeepSeek)
	}
	if cfg.Processing.MinSegmentSec != 15 || cfg.Processing.MaxSegmentSec != 180 || cfg.Processing.TranslateBatchSize != 5 {
		t.Fatalf("file must override only what it sets: %+v", cfg.Processing)
	}
	if cfg.Paths.Output != "clips" || cfg.Paths.Temp != ".cache" {
		t.Fatalf("unexpected paths %+v", cfg.Paths)
	}
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("deepseek: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing key", func(c *Config) { c.DeepSeek.APIKey = " " }, "DEEPSEEK_API_KEY is not configured"},
		{"http base url", func(c *Config) { c.DeepSeek.BaseURL = "http://api.deepseek.com/v1" }, "https is required"},
		{"loopback http", func(c *Config) {
			c.DeepSeek.BaseURL = "http://127.0.0.1:8080/v1"
			c.DeepSeek.AllowedHosts = []string{"127.0.0.1"}
		}, ""},
		{"zero timeout", func(c *Config) { c.DeepSeek.TimeoutSec = 0 }, "timeout must be > 0"},
		{"unknown asr", func(c *Config) { c.Processing.ASR = "vosk" }, `unknown asr backend "vosk"`},
		{"min zero", func(c *Config) { c.Processing.MinSegmentSec = 0 }, "min segment must be > 0"},
		{"max below min", func(c *Config) { c.Processing.MaxSegmentSec = 10 }, "min segment must be <= max segment"},
		{"concurrency", func(c *Config) { c.Processing.ConcurrentRequests = 0 }, "concurrent requests must be >= 1"},
		{"window", func(c *Config) { c.Processing.WindowSec = 60 }, "highlight window must be >= max segment"},
		{"batch", func(c *Config) { c.Processing.TranslateBatchSize = 0 }, "translate batch size must be >= 1"},
		{"whisper model", func(c *Config) {
			c.Processing.ASR = ASRWhisperCPP
			c.Whisper.ModelPath = ""
		}, "model_path is required"},
		{"target", func(c *Config) { c.Video.TargetHeight = 0 }, "target size must be positive"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, `unknown level "loud"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}

	if err := Default().Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
