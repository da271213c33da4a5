package types

import "time"

type Transcript struct {
	Segments []Segment `json:"segments"`
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Candidate is a heuristically scored transcript window used before (or
// instead of) the LLM selection.
type Candidate struct {
	Start time.Duration
	End   time.Duration
	Text  string

	InfoScore float64
	HookScore float64
}

type Highlight struct {
	ID    string
	Start time.Duration
	End   time.Duration
	// Score is in [0..1].
	Score  float64
	Text   string
	Title  string
	Reason string
}

func (h Highlight) Duration() time.Duration { return h.End - h.Start }

type Translation struct {
	ScreenText    string   `json:"screen_text"`
	TTSMarkup     string   `json:"tts_markup"`
	SubtitleLines []string `json:"subtitle_lines"`
}

type Manifest struct {
	Input      string              `json:"input"`
	DurationS  float64             `json:"duration_sec"`
	Language   string              `json:"language"`
	Highlights []ManifestHighlight `json:"highlights"`
}

// ManifestHighlight paths are relative to the run directory.
type ManifestHighlight struct {
	ID              string   `json:"id"`
	StartSec        float64  `json:"start_time"`
	EndSec          float64  `json:"end_time"`
	DurationSec     float64  `json:"duration"`
	HighlightScore  float64  `json:"highlight_score"`
	Title           string   `json:"title,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	Text            string   `json:"text"`
	TextRU          string   `json:"text_ru"`
	TextRUTTS       string   `json:"text_ru_tts"`
	SubtitleLines   []string `json:"subtitle_lines"`
	Subtitles       string   `json:"subtitles,omitempty"`
	SubtitlesSource string   `json:"subtitles_src,omitempty"`
}
