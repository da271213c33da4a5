package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/forPelevin/rushorts/internal/pipeline"
)

const (
	reportTextRunes  = 120
	reportIDsPreview = 3
)

func printReport(w io.Writer, res pipeline.Result, top int) error {
	hs := res.Manifest.Highlights
	var b strings.Builder
	if len(hs) == 0 {
		b.WriteString("No highlights found.\n")
		b.WriteString("Possible reasons: music instead of speech, a language other than the configured one, or too little content.\n")
		fmt.Fprintf(&b, "Manifest: %s\n", res.ManifestPath)
		_, err := io.WriteString(w, b.String())
		return err
	}

	rule := strings.Repeat("=", 80)
	fmt.Fprintf(&b, "%s\nHIGHLIGHTS\n%s\n", rule, rule)
	for i, h := range hs {
		if top > 0 && i >= top {
			break
		}
		fmt.Fprintf(&b, "\n#%d  %.1fs - %.1fs (%.1fs)  score %.2f\n", i+1, h.StartSec, h.EndSec, h.DurationSec, h.HighlightScore)
		if h.Title != "" {
			fmt.Fprintf(&b, "    %s\n", h.Title)
		}
		fmt.Fprintf(&b, "    EN: %s\n", truncateRunes(h.Text, reportTextRunes))
		fmt.Fprintf(&b, "    RU: %s\n", truncateRunes(h.TextRU, reportTextRunes))
	}

	ids := make([]string, 0, reportIDsPreview)
	for i := 0; i < len(hs) && i < reportIDsPreview; i++ {
		ids = append(ids, hs[i].ID)
	}
	input := res.Manifest.Input
	fmt.Fprintf(&b, "\n%s\nFound %d highlights. Manifest: %s\n", rule, len(hs), res.ManifestPath)
	fmt.Fprintf(&b, "video_id: %s\n", strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	fmt.Fprintf(&b, "highlight_ids: %s\n", strings.Join(ids, ", "))

	_, err := io.WriteString(w, b.String())
	return err
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
