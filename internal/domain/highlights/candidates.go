package highlights

import (
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/rushorts/internal/types"
)

// BuildCandidates creates candidate windows between minClip and maxClip long.
// Word timestamps give tighter windows; segments are the fallback for
// transcripts without them.
func BuildCandidates(segs []types.Segment, minClip, maxClip time.Duration) []types.Candidate {
	if minClip <= 0 {
		minClip = time.Second
	}
	if maxClip <= 0 || maxClip < minClip || len(segs) == 0 {
		return nil
	}

	if words := collectAllWords(segs); len(words) >= 2 {
		if cands := buildFromWords(words, minClip, maxClip); len(cands) > 0 {
			return cands
		}
	}
	return buildFromSegments(segs, minClip, maxClip)
}

func buildFromSegments(segs []types.Segment, minClip, maxClip time.Duration) []types.Candidate {
	var out []types.Candidate
	for i := range segs {
		start := dur(segs[i].Start)
		var parts []string
		for j := i; j < len(segs); j++ {
			end := dur(segs[j].End)
			win := end - start
			if win > maxClip {
				break
			}
			if txt := strings.TrimSpace(segs[j].Text); txt != "" {
				parts = append(parts, txt)
			}
			if win < minClip || len(parts) == 0 {
				continue
			}
			text := strings.Join(parts, " ")
			info, hook := Score(text)
			out = append(out, types.Candidate{Start: start, End: end, Text: text, InfoScore: info, HookScore: hook})
		}
	}
	return out
}

type timedWord struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

func collectAllWords(segs []types.Segment) []timedWord {
	var out []timedWord
	for _, s := range segs {
		for _, w := range s.Words {
			ws, we := dur(w.Start), dur(w.End)
			text := strings.TrimSpace(w.Word)
			if we <= ws || text == "" {
				continue
			}
			out = append(out, timedWord{Start: ws, End: we, Text: text})
		}
	}
	return out
}

func buildFromWords(words []timedWord, minClip, maxClip time.Duration) []types.Candidate {
	// caps keep long transcripts bounded
	const (
		maxCandidates = 500
		maxWordsInWin = 600
		maxStartCount = 140
		endStride     = 4
	)

	startStride := 1
	if len(words) > maxStartCount {
		startStride = (len(words) + maxStartCount - 1) / maxStartCount
	}
	startIdxs := make([]int, 0, len(words)/startStride+2)
	for i := 0; i < len(words)-1; i += startStride {
		startIdxs = append(startIdxs, i)
	}
	// keep a near-tail start so the end of the transcript is still covered
	if last := len(words) - 2; last >= 0 && (len(startIdxs) == 0 || startIdxs[len(startIdxs)-1] != last) {
		startIdxs = append(startIdxs, last)
	}

	var out []types.Candidate
	for _, i := range startIdxs {
		start := words[i].Start
		parts := make([]string, 0, 64)
		for j := i; j < len(words) && j-i <= maxWordsInWin; j++ {
			parts = append(parts, words[j].Text)
			if j == i || ((j-i)%endStride != 0 && j != i+1) {
				continue
			}
			win := words[j].End - start
			if win > maxClip {
				break
			}
			if win < minClip {
				continue
			}
			text := strings.Join(parts, " ")
			info, hook := Score(text)
			out = append(out, types.Candidate{Start: start, End: words[j].End, Text: text, InfoScore: info, HookScore: hook})
			if len(out) >= maxCandidates {
				return out
			}
		}
	}
	return out
}

// Pick ranks candidates by info+hook and returns at most n non-overlapping
// highlights with natural ends. Score is (info+hook)/10 capped at 1.
func Pick(cands []types.Candidate, n int, minClip, maxClip time.Duration, t Timing) []types.Highlight {
	if n <= 0 {
		return nil
	}
	best := make([]types.Candidate, len(cands))
	copy(best, cands)
	sort.SliceStable(best, func(i, j int) bool {
		s1 := best[i].InfoScore + best[i].HookScore
		s2 := best[j].InfoScore + best[j].HookScore
		if s1 == s2 {
			return best[i].Start < best[j].Start
		}
		return s1 > s2
	})

	out := make([]types.Highlight, 0, n)
	for _, c := range best {
		if len(out) >= n {
			break
		}
		st, en, ok := NormalizeRange(c.Start, c.End, minClip, maxClip, t)
		if !ok || Overlaps(out, st, en, MinGap) {
			continue
		}
		out = append(out, types.Highlight{
			Start:  st,
			End:    en,
			Score:  clamp((c.InfoScore+c.HookScore)/10, 0, 1),
			Text:   c.Text,
			Reason: "heuristic",
		})
	}
	return out
}

// MinGap separates selected highlights.
const MinGap = 2 * time.Second

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
