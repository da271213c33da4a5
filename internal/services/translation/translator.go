package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/metrics"
	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/types"
)

const (
	DefaultBatchSize = 20
	temperature      = 0.35
)

const systemPrompt = "Ты профессиональный редактор коротких видео. " +
	"Переводи английские реплики на естественный разговорный русский, " +
	"поддерживая эмоциональный стиль. Кроме перевода, подготовь:\n" +
	"- screen_text: чистый текст без разметки, удобный для субтитров на видео;\n" +
	"- tts_markup: тот же текст, но с обозначением пауз с помощью '...', " +
	"а также подчёркиванием _важных слов_ и пометками эмоций в скобках для Silero TTS;\n" +
	"- subtitle_lines: массив из 2-4 коротких строк (до 6 слов) для показа на экране.\n" +
	"Не добавляй новых фактов. Сохраняй юмор и тон."

const userPromptHead = "Верни JSON вида " +
	`{"segments":[{"index":0,"screen_text":"",` +
	`"tts_markup":"","subtitle_lines":["",""]}, ...]}. ` +
	"Вот реплики:\n"

// Translator adapts English lines into Russian screen text, TTS markup and
// subtitle lines through a chat model.
type Translator struct {
	chat      ports.ChatClient
	batchSize int
	log       logger.Logger
	metrics   *metrics.Metrics
}

type Option func(*Translator)

func WithBatchSize(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

func WithLogger(l logger.Logger) Option { return func(t *Translator) { t.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(t *Translator) { t.metrics = m } }

func New(chat ports.ChatClient, opts ...Option) *Translator {
	t := &Translator{chat: chat, batchSize: DefaultBatchSize, log: logger.Nop()}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Translate is TranslateBatch for a single text.
func (t *Translator) Translate(ctx context.Context, text string) (types.Translation, error) {
	res, err := t.TranslateBatch(ctx, []string{text})
	if err != nil {
		return types.Translation{}, err
	}
	if len(res) == 0 {
		return types.Translation{ScreenText: text, TTSMarkup: text, SubtitleLines: []string{text}}, nil
	}
	return res[0], nil
}

// TranslateBatch returns exactly one translation per input, in order. Remote
// failures never surface as errors: the affected batch falls back to the
// original text. Only context cancellation is returned.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string) ([]types.Translation, error) {
	if len(texts) == 0 {
		return []types.Translation{}, nil
	}

	out := make([]types.Translation, 0, len(texts))
	for start := 0; start < len(texts); start += t.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+t.batchSize, len(texts))
		out = append(out, t.translateChunk(ctx, texts[start:end])...)
	}
	return out, nil
}

type item struct {
	Index         json.RawMessage `json:"index"`
	ScreenText    string          `json:"screen_text"`
	TTSMarkup     string          `json:"tts_markup"`
	SubtitleLines subtitleLines   `json:"subtitle_lines"`
}

// subtitleLines also accepts a bare string as a single line.
type subtitleLines []string

func (l *subtitleLines) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = subtitleLines{s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}

func (t *Translator) translateChunk(ctx context.Context, texts []string) []types.Translation {
	lines := make([]string, 0, len(texts))
	for i, text := range texts {
		lines = append(lines, fmt.Sprintf("%d: %s", i, normalizeSpace(text)))
	}

	raw, err := t.chat.ChatJSON(ctx, []ports.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPromptHead + strings.Join(lines, "\n")},
	}, ports.ChatOptions{Temperature: temperature})
	if err != nil {
		t.log.Error(ctx, "translation failed: %v", err)
		return t.fallback(texts)
	}

	var resp struct {
		Segments []json.RawMessage `json:"segments"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.log.Error(ctx, "translation response has unexpected shape: %v", err)
		return t.fallback(texts)
	}

	byIndex := make(map[int]item, len(resp.Segments))
	for i, rawItem := range resp.Segments {
		var it item
		if err := json.Unmarshal(rawItem, &it); err != nil {
			t.log.Warn(ctx, "skip translation item %d: %v", i, err)
			continue
		}
		idx, ok := parseIndex(it.Index)
		if !ok {
			continue
		}
		byIndex[idx] = it
	}

	out := make([]types.Translation, 0, len(texts))
	for i, text := range texts {
		out = append(out, merge(byIndex[i], normalizeSpace(text)))
	}
	return out
}

func merge(it item, fallback string) types.Translation {
	// the fallback applies to absent fields only; a blank field trims to ""
	screen := it.ScreenText
	if screen == "" {
		screen = fallback
	}
	screen = strings.TrimSpace(screen)
	tts := it.TTSMarkup
	if tts == "" {
		tts = screen
	}
	tts = strings.TrimSpace(tts)
	var subs []string
	for _, l := range it.SubtitleLines {
		if l = strings.TrimSpace(l); l != "" {
			subs = append(subs, l)
		}
	}
	if len(subs) == 0 {
		subs = []string{screen}
	}
	return types.Translation{ScreenText: screen, TTSMarkup: tts, SubtitleLines: subs}
}

// fallback keeps the source text unchanged for screen and TTS, with a single
// whitespace-normalized subtitle line.
func (t *Translator) fallback(texts []string) []types.Translation {
	if t.metrics != nil {
		t.metrics.TranslationFallbacks.Inc()
	}
	out := make([]types.Translation, 0, len(texts))
	for _, text := range texts {
		line := ""
		if text != "" {
			line = normalizeSpace(text)
		}
		out = append(out, types.Translation{
			ScreenText:    text,
			TTSMarkup:     text,
			SubtitleLines: []string{line},
		})
	}
	return out
}

// parseIndex accepts JSON integers, integral floats and digit strings.
func parseIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
