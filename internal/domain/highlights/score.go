package highlights

import (
	"regexp"
	"strings"
)

var (
	reNum      = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reHook     = regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|here\s+is\s+why|remember|actually|nobody|truth|surpris\w*|crazy)\b`)
	reHow      = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|do\s+this)\b`)
	reStepNum  = regexp.MustCompile(`(?i)\bstep\s+\d+\b`)
	reEmphasis = regexp.MustCompile(`(?i)\b(you|your)\b`)
)

// Score returns (info, hook) in range [0..10]. It ranks candidates for the
// offline fallback.
func Score(text string) (float64, float64) {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0, 0
	}
	lower := strings.ToLower(t)
	runes := float64(len([]rune(t)))

	info := float64(len(reNum.FindAllStringIndex(t, -1))) * 0.4
	if reHow.MatchString(lower) {
		info += 1.2
	}
	info -= 0.0006 * runes

	hook := float64(len(reHook.FindAllStringIndex(lower, -1))) * 0.9
	hook += float64(len(reStepNum.FindAllStringIndex(lower, -1))) * 0.4
	hook += float64(strings.Count(t, "?")) * 0.7
	hook += float64(strings.Count(t, "!")) * 0.3
	// direct address keeps viewers, but long windows shouldn't win on it alone
	if runes > 0 {
		hook += min(1.0, float64(len(reEmphasis.FindAllStringIndex(lower, -1)))*60/runes)
	}

	return clamp(info, 0, 10), clamp(hook, 0, 10)
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
