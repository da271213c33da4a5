package analyzer

import (
	"fmt"
	"strings"

	"github.com/forPelevin/rushorts/internal/types"
)

const systemPrompt = "You are a short-form video editor. You find self-contained moments in long " +
	"English videos that will work as 20 second to 3 minute vertical clips for a Russian audience " +
	"after translation. Good moments have a hook in the first seconds, a single clear idea and a " +
	"payoff; they start cleanly and end on a complete thought. Do not pick intros, outros, " +
	"sponsor reads or greetings."

func buildUserPrompt(segs []types.Segment, minSec, maxSec float64, maxPerWindow int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pick up to %d highlights from the transcript below. ", maxPerWindow)
	fmt.Fprintf(&b, "Each highlight must last between %.0f and %.0f seconds and must use times from the transcript. ", minSec, maxSec)
	b.WriteString("Highlights must not overlap. Score each one from 0 to 1 by how likely it is to keep a viewer watching. ")
	b.WriteString(`Return only JSON of the form {"highlights":[{"start":0.0,"end":0.0,"score":0.0,"title":"","reason":""}]}. `)
	b.WriteString("Return an empty list if nothing is worth a clip.\n\nTranscript:\n")
	for i, s := range segs {
		fmt.Fprintf(&b, "[%d] %.1f-%.1f: %s\n", i, s.Start, s.End, strings.Join(strings.Fields(s.Text), " "))
	}
	return b.String()
}
