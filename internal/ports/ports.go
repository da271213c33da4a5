package ports

import (
	"context"
	"time"

	"github.com/forPelevin/rushorts/internal/types"
)

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error
	ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error)
}

// Transcriber turns a video file into a normalized transcript.
type Transcriber interface {
	TranscribeVideo(ctx context.Context, videoPath, language string) (types.Transcript, error)
}

type HighlightSelector interface {
	Analyze(ctx context.Context, segments []types.Segment, minDur, maxDur time.Duration) ([]types.Highlight, error)
}

type Translator interface {
	TranslateBatch(ctx context.Context, texts []string) ([]types.Translation, error)
}

type Message struct {
	Role    string
	Content string
}

type ChatOptions struct {
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// ChatClient is the generic chat-completions contract the LLM adapters are
// written against.
type ChatClient interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
	ChatJSON(ctx context.Context, messages []Message, opts ChatOptions) ([]byte, error)
}

type TranscribeOptions struct {
	Language    string
	Temperature float32
}

type SpeechSegment struct {
	Start float64
	End   float64
	Text  string
	Words []types.Word
}

// SpeechResult mirrors a verbose_json transcription response. Words may be
// reported per segment, at the top level, or not at all.
type SpeechResult struct {
	Text     string
	Language string
	Duration float64
	Segments []SpeechSegment
	Words    []types.Word
}

type SpeechClient interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (SpeechResult, error)
}
