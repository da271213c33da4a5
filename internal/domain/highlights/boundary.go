package highlights

import (
	"sort"
	"strings"
	"time"

	"github.com/forPelevin/rushorts/internal/types"
)

// Timing is a sorted view over transcript word and segment boundaries.
type Timing struct {
	words   []timedWord
	segEnds []time.Duration
}

func CollectTiming(segs []types.Segment) Timing {
	t := Timing{segEnds: make([]time.Duration, 0, len(segs))}
	for _, s := range segs {
		if se := dur(s.End); se > 0 {
			t.segEnds = append(t.segEnds, se)
		}
		for _, w := range s.Words {
			ws, we := dur(w.Start), dur(w.End)
			txt := strings.TrimSpace(w.Word)
			if we <= ws || txt == "" {
				continue
			}
			t.words = append(t.words, timedWord{Start: ws, End: we, Text: txt})
		}
	}
	sort.Slice(t.words, func(i, j int) bool {
		if t.words[i].Start == t.words[j].Start {
			return t.words[i].End < t.words[j].End
		}
		return t.words[i].Start < t.words[j].Start
	})
	sort.Slice(t.segEnds, func(i, j int) bool { return t.segEnds[i] < t.segEnds[j] })
	return t
}

// NormalizeRange caps [st, en] to maxClip, rejects ranges shorter than
// minClip and moves the end to the most natural stop nearby.
func NormalizeRange(st, en, minClip, maxClip time.Duration, t Timing) (time.Duration, time.Duration, bool) {
	if st < 0 {
		st = 0
	}
	if en <= st {
		return 0, 0, false
	}
	maxEnd := st + maxClip
	if en > maxEnd {
		en = maxEnd
	}
	minEnd := st + minClip
	if en < minEnd {
		return 0, 0, false
	}

	end := naturalEnd(t, st, en, minEnd, maxEnd)
	if end < minEnd {
		return 0, 0, false
	}
	if end > maxEnd {
		end = maxEnd
	}
	return st, end, true
}

const (
	sentenceTailExtension = 2 * time.Second
	pauseThreshold        = 350 * time.Millisecond
	pauseLookback         = 8 * time.Second
)

// naturalEnd tries, in order: the best scored sentence end, the longest
// pause, the latest segment end, the latest word end.
func naturalEnd(t Timing, start, requested, minEnd, maxEnd time.Duration) time.Duration {
	requested = clampDur(requested, minEnd, maxEnd)
	searchEnd := min(requested+sentenceTailExtension, maxEnd)

	if end, ok := bestSentenceEnd(t.words, start, requested, minEnd, searchEnd); ok {
		return end
	}

	pauseStart := max(searchEnd-pauseLookback, minEnd)
	var bestPause, bestPauseEnd time.Duration
	for i := 0; i+1 < len(t.words); i++ {
		cur, next := t.words[i], t.words[i+1]
		if cur.End < pauseStart || cur.End > searchEnd || next.Start <= cur.End {
			continue
		}
		if pause := next.Start - cur.End; pause >= pauseThreshold && pause > bestPause {
			bestPause, bestPauseEnd = pause, cur.End
		}
	}
	if bestPauseEnd >= minEnd {
		return bestPauseEnd
	}

	if end := latestWithin(t.segEnds, minEnd, searchEnd); end >= minEnd {
		return end
	}

	wordEnds := make([]time.Duration, 0, len(t.words))
	for _, w := range t.words {
		wordEnds = append(wordEnds, w.End)
	}
	if end := latestWithin(wordEnds, minEnd, searchEnd); end >= minEnd {
		return end
	}
	return requested
}

func latestWithin(points []time.Duration, lo, hi time.Duration) time.Duration {
	var best time.Duration
	for _, p := range points {
		if p >= lo && p <= hi && p > best {
			best = p
		}
	}
	return best
}

type sentenceEnd struct {
	End        time.Duration
	Words      int
	LastWord   string
	Sentence   string
	NextWord   string
	PauseAfter time.Duration
}

func bestSentenceEnd(words []timedWord, clipStart, requested, minEnd, searchEnd time.Duration) (time.Duration, bool) {
	cands := collectSentenceEnds(words, clipStart, minEnd, searchEnd)
	if len(cands) == 0 {
		return 0, false
	}
	best := 0
	bestScore := scoreSentenceEnd(cands[0], requested)
	for i := 1; i < len(cands); i++ {
		s := scoreSentenceEnd(cands[i], requested)
		if s > bestScore || (s == bestScore && cands[i].End > cands[best].End) {
			best, bestScore = i, s
		}
	}
	return cands[best].End, true
}

func collectSentenceEnds(words []timedWord, clipStart, minEnd, searchEnd time.Duration) []sentenceEnd {
	var out []sentenceEnd
	for i, w := range words {
		if w.End < minEnd || w.End > searchEnd || !hasTerminalPunctuation(w.Text) {
			continue
		}

		from := 0
		for j := i - 1; j >= 0; j-- {
			if words[j].End <= clipStart || hasTerminalPunctuation(words[j].Text) {
				from = j + 1
				break
			}
		}

		var parts []string
		last, count := "", 0
		for k := from; k <= i; k++ {
			if words[k].End <= clipStart {
				continue
			}
			parts = append(parts, words[k].Text)
			if norm := normalizeToken(words[k].Text); norm != "" {
				count++
				last = norm
			}
		}
		if len(parts) == 0 {
			continue
		}

		c := sentenceEnd{
			End:      w.End,
			Words:    count,
			LastWord: last,
			Sentence: strings.ToLower(strings.Join(parts, " ")),
		}
		if i+1 < len(words) {
			if words[i+1].Start > w.End {
				c.PauseAfter = words[i+1].Start - w.End
			}
			c.NextWord = normalizeToken(words[i+1].Text)
		}
		out = append(out, c)
	}
	return out
}

// scoreSentenceEnd stays close to the requested end unless another boundary
// is clearly a better resolution of the thought.
func scoreSentenceEnd(c sentenceEnd, requested time.Duration) float64 {
	score := -0.30 * absDur(c.End-requested).Seconds()
	closure := hasClosureCue(c.Sentence)

	switch {
	case c.Words >= 8:
		score += 1.1
	case c.Words >= 5:
		score += 0.5
	case c.Words < 4:
		score -= 0.8
	}

	switch {
	case c.PauseAfter >= 450*time.Millisecond:
		score += 1.0
	case c.PauseAfter >= 250*time.Millisecond:
		score += 0.4
	case c.PauseAfter < 120*time.Millisecond:
		score -= 0.35
	}

	if closure {
		score += 1.1
	}
	if danglingTail[c.LastWord] || c.LastWord == "" {
		score -= 2.0
	}
	if strings.HasSuffix(c.Sentence, "?") && c.PauseAfter < 450*time.Millisecond {
		score -= 2.4
	}
	if continuationStart[c.NextWord] && c.PauseAfter < 350*time.Millisecond {
		score -= 0.8
	}
	if c.PauseAfter < 120*time.Millisecond && c.NextWord != "" {
		score -= 0.8
	}
	if c.Words < 5 && !closure && c.PauseAfter < 200*time.Millisecond {
		score -= 0.9
	}
	return score
}

var closureCues = []string{
	"that's it", "that is it", "that's why", "that's how", "there you go",
	"we're out", "we are out", "i'm out", "i am out", "goodbye", "finally",
	"done", "finished", "let's go", "lets go", "we won", "i won", "you won",
	"we did it",
}

func hasClosureCue(s string) bool {
	for _, cue := range closureCues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}

var danglingTail = setOf(
	"and", "but", "or", "so", "because", "if", "when", "then",
	"to", "of", "for", "with", "from", "into", "onto",
	"the", "a", "an", "this", "that", "these", "those",
	"my", "your", "our", "their", "his", "her", "its",
)

var continuationStart = setOf("and", "but", "or", "so", "because", "then", "if", "when", "while", "that")

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func normalizeToken(s string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(s)), `"'`+"`"+"[](){}.,!?;:")
}

func hasTerminalPunctuation(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), `"'`+"`"+")]}")
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// Overlaps reports whether [st, en] comes within minGap of any existing range.
func Overlaps(existing []types.Highlight, st, en, minGap time.Duration) bool {
	for _, e := range existing {
		if st < e.End+minGap && en > e.Start-minGap {
			return true
		}
	}
	return false
}

func clampDur(d, lo, hi time.Duration) time.Duration {
	return max(lo, min(d, hi))
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
