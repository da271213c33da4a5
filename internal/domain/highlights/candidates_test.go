package highlights

import (
	"testing"
	"time"

	"github.com/forPelevin/rushorts/internal/types"
)

func TestBuildCandidates_RespectsBounds(t *testing.T) {
	segs := []types.Segment{
		{Start: 0, End: 40, Text: "A"},
		{Start: 40, End: 90, Text: "B"},
		{Start: 90, End: 100, Text: "C"},
	}
	minClip, maxClip := 20*time.Second, 60*time.Second
	cands := BuildCandidates(segs, minClip, maxClip)
	if len(cands) == 0 {
		t.Fatalf("expected candidates")
	}
	for _, c := range cands {
		if d := c.End - c.Start; d > maxClip || d < minClip {
			t.Fatalf("candidate out of bounds: %v", d)
		}
	}
}

func TestBuildCandidates_PrefersWords(t *testing.T) {
	var words []types.Word
	for i := 0; i < 40; i++ {
		words = append(words, types.Word{Start: float64(i), End: float64(i) + 0.8, Word: "word"})
	}
	segs := []types.Segment{{Start: 0, End: 40, Text: "many words", Words: words}}

	cands := BuildCandidates(segs, 5*time.Second, 10*time.Second)
	if len(cands) == 0 {
		t.Fatalf("expected word-driven candidates")
	}
	for _, c := range cands {
		if c.Text == "many words" {
			t.Fatalf("expected word windows, got segment text")
		}
	}
}

func TestBuildCandidates_InvalidBounds(t *testing.T) {
	segs := []types.Segment{{Start: 0, End: 40, Text: "A"}}
	if got := BuildCandidates(segs, 30*time.Second, 10*time.Second); got != nil {
		t.Fatalf("expected nil for max < min, got %v", got)
	}
	if got := BuildCandidates(nil, time.Second, 10*time.Second); got != nil {
		t.Fatalf("expected nil for empty transcript, got %v", got)
	}
}

func TestPick_DoesNotReturnOverlappingHighlights(t *testing.T) {
	cands := []types.Candidate{
		{Start: 0, End: 25 * time.Second, Text: "A", InfoScore: 9},
		{Start: 10 * time.Second, End: 35 * time.Second, Text: "B", InfoScore: 8},
		{Start: 36 * time.Second, End: 62 * time.Second, Text: "C", InfoScore: 7},
	}

	out := Pick(cands, 3, 20*time.Second, 60*time.Second, Timing{})
	if len(out) != 2 {
		t.Fatalf("expected 2 non-overlapping highlights, got %d", len(out))
	}
	if out[0].Text != "A" || out[1].Text != "C" {
		t.Fatalf("unexpected selection %+v", out)
	}
	if out[0].Score != 0.9 {
		t.Fatalf("expected score 0.9, got %v", out[0].Score)
	}
}

func TestPick_Limit(t *testing.T) {
	cands := []types.Candidate{
		{Start: 0, End: 25 * time.Second, InfoScore: 1},
		{Start: 40 * time.Second, End: 65 * time.Second, InfoScore: 2},
	}
	if out := Pick(cands, 1, 20*time.Second, 60*time.Second, Timing{}); len(out) != 1 || out[0].Start != 40*time.Second {
		t.Fatalf("expected the best single highlight, got %+v", out)
	}
	if out := Pick(cands, 0, 20*time.Second, 60*time.Second, Timing{}); out != nil {
		t.Fatalf("expected nil for n=0")
	}
}
