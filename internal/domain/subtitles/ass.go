package subtitles

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/forPelevin/rushorts/internal/types"
)

const (
	DefaultWidth  = 1080
	DefaultHeight = 1920
)

// Canvas is the PlayRes the subtitles are authored for.
type Canvas struct {
	Width  int
	Height int
}

func (c Canvas) orDefault() Canvas {
	if c.Width <= 0 || c.Height <= 0 {
		return Canvas{Width: DefaultWidth, Height: DefaultHeight}
	}
	return c
}

// RenderLinesASS spreads lines over dur, each line getting time proportional
// to its length. Event times are clip-local.
func RenderLinesASS(lines []string, dur time.Duration, c Canvas) string {
	var kept []string
	for _, l := range lines {
		if l = sanitizeASS(l); l != "" {
			kept = append(kept, l)
		}
	}

	var b strings.Builder
	writeHeader(&b, c.orDefault())
	if len(kept) == 0 || dur <= 0 {
		return b.String()
	}

	total := 0
	for _, l := range kept {
		total += utf8.RuneCountInString(l) + 1
	}
	var at time.Duration
	acc := 0
	for i, l := range kept {
		acc += utf8.RuneCountInString(l) + 1
		end := time.Duration(int64(dur) * int64(acc) / int64(total))
		if i == len(kept)-1 {
			end = dur
		}
		writeDialogue(&b, at, end, l)
		at = end
	}
	return b.String()
}

// RenderKaraokeASS renders source-language subtitles for [start, end] with
// per-word \k tags. Without word timings it falls back to one plain event.
func RenderKaraokeASS(segs []types.Segment, start, end time.Duration, c Canvas) string {
	var b strings.Builder
	writeHeader(&b, c.orDefault())

	words := collectWords(segs, start, end)
	if len(words) == 0 {
		if text := sanitizeASS(collectSegmentText(segs, start, end)); text != "" {
			writeDialogue(&b, 0, end-start, text)
		}
		return b.String()
	}
	for _, ln := range packWords(words) {
		var t strings.Builder
		for i, w := range ln.Words {
			if i > 0 {
				t.WriteByte(' ')
			}
			cs := max(1, int((w.End-w.Start)/(10*time.Millisecond)))
			fmt.Fprintf(&t, "{\\k%d}%s", cs, w.Text)
		}
		writeDialogue(&b, ln.Start, ln.End, t.String())
	}
	return b.String()
}

// wordCoverSlack is how far the first and last word may sit from the range
// edges for the words to count as covering it.
const wordCoverSlack = 2 * time.Second

// HasWordTimings reports whether word timestamps cover [start, end].
func HasWordTimings(segs []types.Segment, start, end time.Duration) bool {
	words := collectWords(segs, start, end)
	if len(words) == 0 {
		return false
	}
	first, last := words[0].Start, words[0].End
	for _, w := range words[1:] {
		first, last = min(first, w.Start), max(last, w.End)
	}
	return first <= wordCoverSlack && (end-start)-last <= wordCoverSlack
}

type wword struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type line struct {
	Start time.Duration
	End   time.Duration
	Words []wword
}

func collectWords(segs []types.Segment, start, end time.Duration) []wword {
	var out []wword
	for _, s := range segs {
		for _, w := range s.Words {
			ws, we := dur(w.Start), dur(w.End)
			if we <= start || ws >= end {
				continue
			}
			text := sanitizeASS(w.Word)
			if text == "" {
				continue
			}
			ws, we = max(ws, start), min(we, end)
			out = append(out, wword{Start: ws - start, End: we - start, Text: text})
		}
	}
	return out
}

func collectSegmentText(segs []types.Segment, start, end time.Duration) string {
	var parts []string
	for _, s := range segs {
		if dur(s.End) <= start || dur(s.Start) >= end {
			continue
		}
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// packWords keeps lines short enough for a vertical frame.
func packWords(words []wword) []line {
	const (
		charBudget = 32
		wordBudget = 6
	)
	var out []line
	cur := line{Start: words[0].Start}
	curLen := 0
	for _, w := range words {
		wl := utf8.RuneCountInString(w.Text)
		next := curLen + wl
		if curLen > 0 {
			next++
		}
		if len(cur.Words) > 0 && (len(cur.Words) >= wordBudget || next > charBudget) {
			cur.End = cur.Words[len(cur.Words)-1].End
			out = append(out, cur)
			cur = line{Start: w.Start}
			curLen, next = 0, wl
		}
		cur.Words = append(cur.Words, w)
		curLen = next
	}
	cur.End = cur.Words[len(cur.Words)-1].End
	return append(out, cur)
}

func writeHeader(b *strings.Builder, c Canvas) {
	// font and margins scale with the frame width
	fontSize := c.Width * 72 / DefaultWidth
	margin := c.Width * 60 / DefaultWidth
	marginV := c.Height * 320 / DefaultHeight

	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(b, "PlayResX: %d\nPlayResY: %d\n", c.Width, c.Height)
	b.WriteString("WrapStyle: 0\nScaledBorderAndShadow: yes\n\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(b, "Style: Shorts,Inter,%d,&H00FFFFFF,&H00FFD200,&H00000000,&H64000000,1,0,0,0,100,100,0,0,1,6,2,2,%d,%d,%d,204\n\n", fontSize, margin, margin, marginV)
	b.WriteString("[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
}

func writeDialogue(b *strings.Builder, start, end time.Duration, text string) {
	fmt.Fprintf(b, "Dialogue: 0,%s,%s,Shorts,,0,0,0,,%s\n", assTime(start), assTime(end), text)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
