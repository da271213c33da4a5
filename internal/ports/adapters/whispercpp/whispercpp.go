package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/types"
	"github.com/forPelevin/rushorts/pkg/executor"
)

// Adapter runs a local whisper.cpp binary as a drop-in speech client.
type Adapter struct {
	bin      string
	model    string
	cacheDir string
	exec     executor.Executor
}

func New(binPath, modelPath, cacheDir string, exec executor.Executor) *Adapter {
	if exec == nil {
		exec = executor.New()
	}
	return &Adapter{bin: binPath, model: modelPath, cacheDir: cacheDir, exec: exec}
}

type offsets struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

type outputJSON struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets offsets `json:"offsets"`
		Text    string  `json:"text"`
		Tokens  []struct {
			Text    string  `json:"text"`
			Offsets offsets `json:"offsets"`
		} `json:"tokens"`
	} `json:"transcription"`
}

func (a *Adapter) Transcribe(ctx context.Context, audioPath string, opts ports.TranscribeOptions) (ports.SpeechResult, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return ports.SpeechResult{}, fmt.Errorf("audio file not found: %s: %w", audioPath, err)
	}
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return ports.SpeechResult{}, err
	}

	outDir, err := os.MkdirTemp(a.cacheDir, "whisper-*")
	if err != nil {
		return ports.SpeechResult{}, err
	}
	defer os.RemoveAll(outDir)

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outPrefix := filepath.Join(outDir, stem)
	args := []string{
		"-m", a.model,
		"-f", audioPath,
		"-ojf",
		"-of", outPrefix,
	}
	if opts.Language != "" {
		args = append(args, "-l", opts.Language)
	}
	if _, err := a.exec.Execute(ctx, a.bin, args...); err != nil {
		return ports.SpeechResult{}, fmt.Errorf("whisper.cpp failed: %w", err)
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return ports.SpeechResult{}, err
	}
	return parseOutput(jb)
}

func parseOutput(b []byte) (ports.SpeechResult, error) {
	var out outputJSON
	if err := json.Unmarshal(b, &out); err != nil {
		return ports.SpeechResult{}, fmt.Errorf("parse whisper.cpp json: %w", err)
	}

	res := ports.SpeechResult{Language: out.Result.Language}
	var texts []string
	for _, tr := range out.Transcription {
		seg := ports.SpeechSegment{
			Start: ms(tr.Offsets.From),
			End:   ms(tr.Offsets.To),
			Text:  strings.TrimSpace(tr.Text),
		}
		for _, tok := range tr.Tokens {
			// special tokens look like [_BEG_] or [_TT_123]
			if strings.HasPrefix(tok.Text, "[_") {
				continue
			}
			if tok.Text == "" {
				continue
			}
			// a token without a leading space continues the previous word
			if len(seg.Words) > 0 && !strings.HasPrefix(tok.Text, " ") {
				last := &seg.Words[len(seg.Words)-1]
				last.Word += tok.Text
				last.End = ms(tok.Offsets.To)
				continue
			}
			w := strings.TrimSpace(tok.Text)
			if w == "" {
				continue
			}
			seg.Words = append(seg.Words, types.Word{
				Start: ms(tok.Offsets.From),
				End:   ms(tok.Offsets.To),
				Word:  w,
			})
		}
		if seg.End > res.Duration {
			res.Duration = seg.End
		}
		if seg.Text != "" {
			texts = append(texts, seg.Text)
		}
		res.Segments = append(res.Segments, seg)
	}
	res.Text = strings.Join(texts, " ")
	return res, nil
}

func ms(v int64) float64 { return float64(v) / 1000 }
