package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/rushorts/internal/domain/highlights"
	"github.com/forPelevin/rushorts/internal/logger"
	"github.com/forPelevin/rushorts/internal/metrics"
	"github.com/forPelevin/rushorts/internal/ports"
	"github.com/forPelevin/rushorts/internal/types"
)

const (
	DefaultConcurrency = 5
	DefaultWindow      = 10 * time.Minute
	maxPerWindow       = 5
	fallbackPerWindow  = 3
)

// Analyzer asks a chat model for highlight ranges, one transcript window per
// request.
type Analyzer struct {
	chat        ports.ChatClient
	concurrency int
	window      time.Duration
	log         logger.Logger
	metrics     *metrics.Metrics
	newID       func() string
}

type Option func(*Analyzer)

func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.window = d
		}
	}
}

func WithLogger(l logger.Logger) Option { return func(a *Analyzer) { a.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *Analyzer) { a.metrics = m } }

func WithIDFunc(f func() string) Option { return func(a *Analyzer) { a.newID = f } }

func New(chat ports.ChatClient, opts ...Option) *Analyzer {
	a := &Analyzer{
		chat:        chat,
		concurrency: DefaultConcurrency,
		window:      DefaultWindow,
		log:         logger.Nop(),
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze returns non-overlapping highlights sorted by score (desc), then start.
func (a *Analyzer) Analyze(ctx context.Context, segments []types.Segment, minDur, maxDur time.Duration) ([]types.Highlight, error) {
	if minDur <= 0 || maxDur < minDur {
		return nil, fmt.Errorf("invalid highlight duration bounds [%s, %s]", minDur, maxDur)
	}
	segs := speechSegments(segments)
	if len(segs) == 0 {
		return []types.Highlight{}, nil
	}

	window := a.window
	if window < 2*maxDur {
		window = 2 * maxDur
		a.log.Debug(ctx, "highlight window widened to %s for max duration %s", window, maxDur)
	}
	windows := splitWindows(segs, window, maxDur/2)
	timing := highlights.CollectTiming(segs)
	a.log.Info(ctx, "analyzing %d segments in %d windows (concurrency %d)", len(segs), len(windows), a.concurrency)

	results := make([][]types.Highlight, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			found, err := a.analyzeWindow(gctx, w, minDur, maxDur, timing)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []types.Highlight
	for _, r := range results {
		all = append(all, r...)
	}
	out := dedupe(all)
	for i := range out {
		out[i].ID = a.newID()
		out[i].Text = textInRange(segs, out[i].Start, out[i].End)
	}
	if a.metrics != nil {
		a.metrics.HighlightsSelected.Add(float64(len(out)))
	}
	return out, nil
}

type llmHighlight struct {
	Start  number `json:"start"`
	End    number `json:"end"`
	Score  number `json:"score"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// number accepts a JSON number or a numeric string such as "12.5".
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", b)
	}
	*n = number(f)
	return nil
}

// analyzeWindow only returns an error when ctx is done; remote failures fall
// back to heuristic candidates for this window.
func (a *Analyzer) analyzeWindow(ctx context.Context, w []types.Segment, minDur, maxDur time.Duration, timing highlights.Timing) ([]types.Highlight, error) {
	wStart := seconds(w[0].Start)
	wEnd := seconds(w[len(w)-1].End)

	raw, err := a.chat.ChatJSON(ctx, []ports.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(w, minDur.Seconds(), maxDur.Seconds(), maxPerWindow)},
	}, ports.ChatOptions{JSONMode: true})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn(ctx, "highlight window %s-%s: %v; using heuristic fallback", wStart, wEnd, err)
		return a.fallback(w, minDur, maxDur, timing), nil
	}

	var resp struct {
		Highlights []json.RawMessage `json:"highlights"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		a.log.Warn(ctx, "highlight window %s-%s: unexpected response shape: %v; using heuristic fallback", wStart, wEnd, err)
		return a.fallback(w, minDur, maxDur, timing), nil
	}
	if len(resp.Highlights) == 0 {
		return nil, nil
	}

	var out []types.Highlight
	for i, item := range resp.Highlights {
		var h llmHighlight
		if err := json.Unmarshal(item, &h); err != nil {
			a.log.Debug(ctx, "dropping highlight item %d: %v", i, err)
			continue
		}
		st := clampDur(seconds(float64(h.Start)), wStart, wEnd)
		en := clampDur(seconds(float64(h.End)), wStart, wEnd)
		st, en, ok := highlights.NormalizeRange(st, en, minDur, maxDur, timing)
		if !ok {
			a.log.Debug(ctx, "dropping highlight %.1f-%.1f: out of bounds", h.Start, h.End)
			continue
		}
		out = append(out, types.Highlight{
			Start:  st,
			End:    en,
			Score:  normalizeScore(float64(h.Score)),
			Title:  strings.TrimSpace(h.Title),
			Reason: strings.TrimSpace(h.Reason),
		})
	}
	if len(out) == 0 {
		a.log.Warn(ctx, "highlight window %s-%s: no usable ranges in response; using heuristic fallback", wStart, wEnd)
		return a.fallback(w, minDur, maxDur, timing), nil
	}
	return out, nil
}

func (a *Analyzer) fallback(w []types.Segment, minDur, maxDur time.Duration, timing highlights.Timing) []types.Highlight {
	if a.metrics != nil {
		a.metrics.HighlightFallbacks.Inc()
	}
	cands := highlights.BuildCandidates(w, minDur, maxDur)
	return highlights.Pick(cands, fallbackPerWindow, minDur, maxDur, timing)
}

func speechSegments(in []types.Segment) []types.Segment {
	out := make([]types.Segment, 0, len(in))
	for _, s := range in {
		if s.End <= s.Start || strings.TrimSpace(s.Text) == "" {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// splitWindows groups consecutive segments into windows of about size. Each
// window after the first repeats the segments from the last overlap of the
// previous one so moments on a boundary are still seen whole.
func splitWindows(segs []types.Segment, size, overlap time.Duration) [][]types.Segment {
	var out [][]types.Segment
	i := 0
	for i < len(segs) {
		start := seconds(segs[i].Start)
		j := i + 1
		for j < len(segs) && seconds(segs[j].End)-start <= size {
			j++
		}
		out = append(out, segs[i:j])
		if j >= len(segs) {
			break
		}

		next := j
		cut := seconds(segs[j-1].End) - overlap
		for k := j - 1; k > i; k-- {
			if seconds(segs[k].Start) < cut {
				break
			}
			next = k
		}
		i = next
	}
	return out
}

// dedupe keeps the best scored highlight of every overlapping group.
func dedupe(in []types.Highlight) []types.Highlight {
	sorted := make([]types.Highlight, len(in))
	copy(sorted, in)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score == sorted[j].Score {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Score > sorted[j].Score
	})

	out := make([]types.Highlight, 0, len(sorted))
	for _, h := range sorted {
		if highlights.Overlaps(out, h.Start, h.End, highlights.MinGap) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// textInRange prefers word timestamps and falls back to whole segments that
// intersect the range.
func textInRange(segs []types.Segment, st, en time.Duration) string {
	const tolerance = 100 * time.Millisecond
	var words, segTexts []string
	for _, s := range segs {
		ss, se := seconds(s.Start), seconds(s.End)
		if se <= st || ss >= en {
			continue
		}
		segTexts = append(segTexts, strings.TrimSpace(s.Text))
		for _, w := range s.Words {
			if seconds(w.Start) >= st-tolerance && seconds(w.End) <= en+tolerance {
				words = append(words, strings.TrimSpace(w.Word))
			}
		}
	}
	if len(words) > 0 {
		return strings.Join(words, " ")
	}
	return strings.Join(segTexts, " ")
}

// normalizeScore maps model scores to [0..1]; a 0-10 scale is accepted too.
func normalizeScore(s float64) float64 {
	if s > 1 && s <= 10 {
		s /= 10
	}
	return max(0, min(s, 1))
}

func clampDur(d, lo, hi time.Duration) time.Duration { return max(lo, min(d, hi)) }

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
