package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/types"
)

type fakeVideo struct {
	outWav string
	err    error
}

func (f *fakeVideo) ExtractAudioMono16k(_ context.Context, _, outWav string) error {
	f.outWav = outWav
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outWav, []byte("RIFF"), 0o644)
}

func (f *fakeVideo) ProbeDuration(context.Context, string) (time.Duration, error) { return 0, nil }

type fakeSpeech struct {
	res     ports.SpeechResult
	err     error
	gotOpts ports.TranscribeOptions
	sawFile bool
}

func (f *fakeSpeech) Transcribe(_ context.Context, audioPath string, opts ports.TranscribeOptions) (ports.SpeechResult, error) {
	f.gotOpts = opts
	_, statErr := os.Stat(audioPath)
	f.sawFile = statErr == nil
	return f.res, f.err
}

func TestTranscribeVideo_RemovesAudioAndDefaultsLanguage(t *testing.T) {
	dir := t.TempDir()
	video := &fakeVideo{}
	speech := &fakeSpeech{res: ports.SpeechResult{
		Text:     " hi there ",
		Segments: []ports.SpeechSegment{{Start: 0, End: 1.5, Text: " hi there "}},
	}}

	tr, err := New(video, speech, dir, nil).TranscribeVideo(context.Background(), "/videos/talk.mp4", "")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if filepath.Base(video.outWav) != "talk_ds.wav" {
		t.Fatalf("unexpected wav name %q", video.outWav)
	}
	if !speech.sawFile {
		t.Fatalf("speech client should see the extracted audio")
	}
	if speech.gotOpts.Language != "en" {
		t.Fatalf("expected default language en, got %q", speech.gotOpts.Language)
	}
	if _, err := os.Stat(video.outWav); !os.IsNotExist(err) {
		t.Fatalf("expected temp audio to be removed, stat err=%v", err)
	}
	if tr.Text != "hi there" || tr.Segments[0].Text != "hi there" {
		t.Fatalf("unexpected transcript %+v", tr)
	}
	if tr.Language != "en" {
		t.Fatalf("expected language to fall back to requested, got %q", tr.Language)
	}
}

func TestTranscribeVideo_RemovesAudioOnFailure(t *testing.T) {
	dir := t.TempDir()
	video := &fakeVideo{}
	boom := errors.New("remote down")
	speech := &fakeSpeech{err: boom}

	_, err := New(video, speech, dir, nil).TranscribeVideo(context.Background(), "clip.mov", "en")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped remote error, got %v", err)
	}
	if _, err := os.Stat(video.outWav); !os.IsNotExist(err) {
		t.Fatalf("expected temp audio to be removed, stat err=%v", err)
	}
}

func TestTranscribeVideo_ExtractFailure(t *testing.T) {
	boom := errors.New("ffmpeg exit 1")
	speech := &fakeSpeech{}
	_, err := New(&fakeVideo{err: boom}, speech, t.TempDir(), nil).TranscribeVideo(context.Background(), "a.mp4", "en")
	if !errors.Is(err, boom) {
		t.Fatalf("expected extract error, got %v", err)
	}
}

// echoVideo writes the source path into the wav so the speech fake can tell
// calls apart.
type echoVideo struct{}

func (echoVideo) ExtractAudioMono16k(_ context.Context, videoPath, outWav string) error {
	return os.WriteFile(outWav, []byte(videoPath), 0o644)
}

func (echoVideo) ProbeDuration(context.Context, string) (time.Duration, error) { return 0, nil }

// gatedSpeech holds calls for paths under /a/ until release is closed.
type gatedSpeech struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSpeech) Transcribe(_ context.Context, audioPath string, _ ports.TranscribeOptions) (ports.SpeechResult, error) {
	b, err := os.ReadFile(audioPath)
	if err != nil {
		return ports.SpeechResult{}, err
	}
	if strings.Contains(string(b), "/a/") {
		close(g.entered)
		<-g.release
	}
	b, err = os.ReadFile(audioPath)
	if err != nil {
		return ports.SpeechResult{}, err
	}
	return ports.SpeechResult{Text: string(b)}, nil
}

func TestTranscribeVideo_ConcurrentSameStem(t *testing.T) {
	dir := t.TempDir()
	speech := &gatedSpeech{entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(echoVideo{}, speech, dir, nil)

	type result struct {
		tr  types.Transcript
		err error
	}
	done := make(chan result, 1)
	go func() {
		tr, err := svc.TranscribeVideo(context.Background(), "/in/a/talk.mp4", "en")
		done <- result{tr, err}
	}()
	<-speech.entered

	trB, err := svc.TranscribeVideo(context.Background(), "/in/b/talk.mov", "en")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	close(speech.release)
	a := <-done

	if a.err != nil {
		t.Fatalf("first call: %v", a.err)
	}
	if a.tr.Text != "/in/a/talk.mp4" || trB.Text != "/in/b/talk.mov" {
		t.Fatalf("calls saw each other's audio: a=%q b=%q", a.tr.Text, trB.Text)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp dir to be cleaned, found %d entries", len(entries))
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		in        ports.SpeechResult
		wantSegs  []types.Segment
		wantText  string
		wantWords []int
	}{
		{
			name: "segments with top-level words",
			in: ports.SpeechResult{
				Segments: []ports.SpeechSegment{
					{Start: 0, End: 2, Text: " One two. "},
					{Start: 2, End: 4, Text: "Three."},
				},
				Words: []types.Word{
					{Start: 0.1, End: 0.5, Word: "One"},
					{Start: 0.6, End: 1.9, Word: " two. "},
					{Start: 2.1, End: 3.9, Word: "Three."},
				},
			},
			wantText:  "One two. Three.",
			wantWords: []int{2, 1},
		},
		{
			name: "segment words win over top-level",
			in: ports.SpeechResult{
				Text: "Hello",
				Segments: []ports.SpeechSegment{{
					Start: 0, End: 1, Text: "Hello",
					Words: []types.Word{{Start: 0, End: 1, Word: "Hello"}, {Start: 1, End: 1, Word: "  "}},
				}},
				Words: []types.Word{{Start: 0, End: 0.2, Word: "x"}, {Start: 0.3, End: 0.4, Word: "y"}},
			},
			wantText:  "Hello",
			wantWords: []int{1},
		},
		{
			name: "no segments becomes one",
			in:   ports.SpeechResult{Text: "  whole text  ", Duration: 42},
			wantSegs: []types.Segment{
				{Start: 0, End: 42, Text: "whole text"},
			},
			wantText:  "whole text",
			wantWords: []int{0},
		},
		{
			name:      "empty response",
			in:        ports.SpeechResult{},
			wantSegs:  []types.Segment{{Start: 0, End: 0, Text: ""}},
			wantText:  "",
			wantWords: []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got.Text != tt.wantText {
				t.Fatalf("text = %q, want %q", got.Text, tt.wantText)
			}
			if len(got.Segments) != len(tt.wantWords) {
				t.Fatalf("segments = %d, want %d", len(got.Segments), len(tt.wantWords))
			}
			for i, n := range tt.wantWords {
				if len(got.Segments[i].Words) != n {
					t.Fatalf("segment %d has %d words, want %d", i, len(got.Segments[i].Words), n)
				}
			}
			for i, ws := range tt.wantSegs {
				gs := got.Segments[i]
				if gs.Start != ws.Start || gs.End != ws.End || gs.Text != ws.Text {
					t.Fatalf("segment %d = %+v, want %+v", i, gs, ws)
				}
			}
		})
	}
}
