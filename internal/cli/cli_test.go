package cli

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forPelevin/rushorts/internal/config"
	"github.com/forPelevin/rushorts/internal/metrics"
	"github.com/forPelevin/rushorts/internal/pipeline"
	"github.com/forPelevin/rushorts/internal/types"
)

func TestLoadConfig_FlagsOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DEEPSEEK_API_KEY", "sk-env")

	root := newRootCmd()
	if err := root.ParseFlags([]string{"--min", "30", "--asr", "whispercpp", "--log-level", "debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg, err := loadConfig(root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Processing.MinSegmentSec != 30 || cfg.Processing.ASR != config.ASRWhisperCPP || cfg.Logging.Level != "debug" {
		t.Fatalf("flags not applied: %+v %+v", cfg.Processing, cfg.Logging)
	}
	if cfg.Processing.MaxSegmentSec != 180 || cfg.Paths.Output != "out" {
		t.Fatalf("unset flags must keep config values: %+v", cfg)
	}
	if cfg.DeepSeek.APIKey != "sk-env" {
		t.Fatalf("expected key from env, got %q", cfg.DeepSeek.APIKey)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	root := newRootCmd()
	if err := root.ParseFlags([]string{"--config", "/does/not/exist.yaml"}); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(root); err == nil || !strings.Contains(err.Error(), "config:") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestPrintReport(t *testing.T) {
	long := strings.Repeat("я", 130)
	res := pipeline.Result{
		ManifestPath: "out/run/manifest.json",
		Manifest: types.Manifest{
			Input: "/videos/talk.mp4",
			Highlights: []types.ManifestHighlight{
				{ID: "a", StartSec: 1, EndSec: 31, DurationSec: 30, HighlightScore: 0.875, Text: "short", TextRU: long},
				{ID: "b", Text: "two"},
				{ID: "c", Text: "three"},
				{ID: "d", Text: "four"},
			},
		},
	}

	var buf bytes.Buffer
	if err := printReport(&buf, res, 2); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"#1  1.0s - 31.0s (30.0s)  score 0.88",
		"EN: short",
		"RU: " + strings.Repeat("я", 120) + "...\n",
		"Found 4 highlights. Manifest: out/run/manifest.json",
		"video_id: talk",
		"highlight_ids: a, b, c\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "#3") {
		t.Fatalf("report must stop at top rows:\n%s", out)
	}
}

func TestPrintReport_NoHighlights(t *testing.T) {
	var buf bytes.Buffer
	if err := printReport(&buf, pipeline.Result{ManifestPath: "m.json"}, 10); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "No highlights found.") {
		t.Fatalf("unexpected report: %s", buf.String())
	}
}

func TestMetricsServer(t *testing.T) {
	m := metrics.New(nil)
	m.HighlightFallbacks.Inc()
	srv := metricsServer(":0", m)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "rushorts_highlight_fallbacks_total 1") {
		t.Fatalf("unexpected metrics response %d:\n%s", rec.Code, rec.Body.String())
	}
}
