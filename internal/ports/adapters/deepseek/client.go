package deepseek

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/metrics"
	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/types"
)

const (
	DefaultTemperature = 0.2
	defaultTimeout     = 120 * time.Second
)

var ErrMissingAPIKey = errors.New("deepseek: api key is empty")

// RemoteError is a non-2xx answer from the API with secrets stripped from the
// message.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("deepseek %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("deepseek %s status %d: %s", e.Op, e.StatusCode, e.Message)
}

type Config struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	TranscribeModel string
	Timeout         time.Duration

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     logger.Logger
}

// Client talks to an OpenAI-compatible chat and speech API.
type Client struct {
	api             *openai.Client
	key             string
	chatModel       string
	transcribeModel string
	timeout         time.Duration
	metrics         *metrics.Metrics
	log             logger.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "deepseek-chat"
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = "deepseek-speech"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = normalizeBaseURL(cfg.BaseURL)
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		api:             openai.NewClientWithConfig(oc),
		key:             cfg.APIKey,
		chatModel:       cfg.ChatModel,
		transcribeModel: cfg.TranscribeModel,
		timeout:         cfg.Timeout,
		metrics:         cfg.Metrics,
		log:             cfg.Logger,
	}, nil
}

// Chat calls the chat-completions endpoint and returns the first choice.
// A zero Temperature means DefaultTemperature.
func (c *Client) Chat(ctx context.Context, messages []ports.Message, opts ports.ChatOptions) (string, error) {
	temp := opts.Temperature
	if temp == 0 {
		temp = DefaultTemperature
	}
	req := openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: temp,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	c.log.Debug(ctx, "deepseek chat: model=%s messages=%d temperature=%.2f", c.chatModel, len(messages), temp)
	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err == nil && len(resp.Choices) == 0 {
		err = &RemoteError{Op: "chat", Message: "unexpected response: no choices"}
	}
	if c.metrics != nil {
		c.metrics.ObserveRequest(c.metrics.ChatRequests, "chat", started, err)
	}
	if err != nil {
		return "", c.wrap(ctx, "chat", err)
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatJSON is Chat followed by extraction of a JSON document from the answer.
func (c *Client) ChatJSON(ctx context.Context, messages []ports.Message, opts ports.ChatOptions) ([]byte, error) {
	content, err := c.Chat(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	raw, err := extractJSON(content)
	if err != nil {
		c.log.Warn(ctx, "failed to parse deepseek JSON response: %s", truncate(content, 400))
		return nil, err
	}
	return raw, nil
}

// Transcribe uploads a WAV file to the speech-to-text endpoint and asks for
// verbose JSON with word and segment timestamps.
func (c *Client) Transcribe(ctx context.Context, audioPath string, opts ports.TranscribeOptions) (ports.SpeechResult, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return ports.SpeechResult{}, fmt.Errorf("audio file not found: %s: %w", audioPath, err)
	}

	req := openai.AudioRequest{
		Model:       c.transcribeModel,
		FilePath:    audioPath,
		Language:    opts.Language,
		Temperature: opts.Temperature,
		Format:      openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	}

	started := time.Now()
	resp, err := c.api.CreateTranscription(ctx, req)
	if c.metrics != nil {
		c.metrics.ObserveRequest(c.metrics.TranscriptionRequests, "transcription", started, err)
	}
	if err != nil {
		return ports.SpeechResult{}, c.wrap(ctx, "transcription", err)
	}
	return fromAudioResponse(resp), nil
}

func (c *Client) wrap(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("deepseek %s: %w", op, ctx.Err())
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return &RemoteError{
		Op:         op,
		StatusCode: status,
		Message:    truncate(redactSecrets(err.Error(), c.key), 400),
	}
}

func toOpenAIMessages(in []ports.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func fromAudioResponse(resp openai.AudioResponse) ports.SpeechResult {
	res := ports.SpeechResult{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
		Segments: make([]ports.SpeechSegment, 0, len(resp.Segments)),
		Words:    make([]types.Word, 0, len(resp.Words)),
	}
	for _, s := range resp.Segments {
		res.Segments = append(res.Segments, ports.SpeechSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	for _, w := range resp.Words {
		res.Words = append(res.Words, types.Word{Start: w.Start, End: w.End, Word: w.Word})
	}
	return res
}
