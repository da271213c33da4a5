package whispercpp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/forPelevin/rushorts/internal/ports"
)

const sampleJSON = `{
  "result": {"language": "en"},
  "transcription": [
    {
      "offsets": {"from": 0, "to": 2000},
      "text": " Hello world.",
      "tokens": [
        {"text": "[_BEG_]", "offsets": {"from": 0, "to": 0}},
        {"text": " Hel", "offsets": {"from": 100, "to": 300}},
        {"text": "lo", "offsets": {"from": 300, "to": 500}},
        {"text": " world.", "offsets": {"from": 600, "to": 1100}}
      ]
    },
    {
      "offsets": {"from": 2000, "to": 3500},
      "text": " Bye.",
      "tokens": []
    }
  ]
}`

func TestParseOutput(t *testing.T) {
	res, err := parseOutput([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Language != "en" || res.Duration != 3.5 {
		t.Fatalf("unexpected header fields: %+v", res)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
	words := res.Segments[0].Words
	if len(words) != 2 || words[0].Word != "Hello" || words[1].Word != "world." {
		t.Fatalf("unexpected words %+v", words)
	}
	if words[0].Start != 0.1 || words[0].End != 0.5 {
		t.Fatalf("merged word timing wrong: %+v", words[0])
	}
	if res.Text != "Hello world. Bye." {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

type fakeExec struct {
	args []string
	json string
}

func (f *fakeExec) Execute(_ context.Context, _ string, args ...string) (string, error) {
	f.args = args
	for i, a := range args {
		if a == "-of" {
			return "", os.WriteFile(args[i+1]+".json", []byte(f.json), 0o644)
		}
	}
	return "", nil
}

func TestTranscribe_RunsBinaryAndParses(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "a.wav")
	if err := os.WriteFile(wav, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	fx := &fakeExec{json: sampleJSON}
	a := New("whisper", "model.bin", filepath.Join(dir, "cache"), fx)
	res, err := a.Transcribe(context.Background(), wav, ports.TranscribeOptions{Language: "en"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
	if !strings.Contains(strings.Join(fx.args, " "), "-l en") {
		t.Fatalf("expected language flag, got %v", fx.args)
	}
}

// gatedExec emits a transcript naming the input file. Calls for a.wav wait
// for release after writing their output.
type gatedExec struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedExec) Execute(_ context.Context, _ string, args ...string) (string, error) {
	var in, prefix string
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "-f":
			in = args[i+1]
		case "-of":
			prefix = args[i+1]
		}
	}
	out := `{"transcription":[{"offsets":{"from":0,"to":1000},"text":"` + filepath.Base(in) + `"}]}`
	if err := os.WriteFile(prefix+".json", []byte(out), 0o644); err != nil {
		return "", err
	}
	if filepath.Base(in) == "a.wav" {
		close(g.entered)
		<-g.release
	}
	return "", nil
}

func TestTranscribe_ConcurrentCallsKeepOutputsApart(t *testing.T) {
	dir := t.TempDir()
	cache := filepath.Join(dir, "cache")
	for _, name := range []string{"a.wav", "b.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	gx := &gatedExec{entered: make(chan struct{}), release: make(chan struct{})}
	a := New("whisper", "model.bin", cache, gx)

	var (
		wg   sync.WaitGroup
		resA ports.SpeechResult
		errA error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		resA, errA = a.Transcribe(context.Background(), filepath.Join(dir, "a.wav"), ports.TranscribeOptions{})
	}()
	<-gx.entered

	resB, errB := a.Transcribe(context.Background(), filepath.Join(dir, "b.wav"), ports.TranscribeOptions{})
	close(gx.release)
	wg.Wait()

	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: a=%v b=%v", errA, errB)
	}
	if resA.Text != "a.wav" || resB.Text != "b.wav" {
		t.Fatalf("outputs mixed up: a=%q b=%q", resA.Text, resB.Text)
	}
	entries, err := os.ReadDir(cache)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected cache to be cleaned, found %d entries", len(entries))
	}
}
