package deepseek

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var errEmptyContent = errors.New("deepseek: empty content")

// extractJSON finds a JSON document in a model answer. Fenced blocks are tried
// first (a leading language tag such as "json" is tolerated), then the whole
// answer, then the outermost {...} span.
func extractJSON(content string) (json.RawMessage, error) {
	t := strings.TrimSpace(content)
	if t == "" {
		return nil, errEmptyContent
	}

	if strings.Contains(t, "```") {
		for _, part := range strings.Split(t, "```") {
			candidate := strings.TrimSpace(part)
			if candidate == "" {
				continue
			}
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), nil
			}
			if i := strings.IndexByte(candidate, '\n'); i > 0 && isLangTag(candidate[:i]) {
				body := strings.TrimSpace(candidate[i+1:])
				if json.Valid([]byte(body)) {
					return json.RawMessage(body), nil
				}
			}
		}
	}

	if json.Valid([]byte(t)) {
		return json.RawMessage(t), nil
	}

	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start && json.Valid([]byte(t[start:end+1])) {
		return json.RawMessage(t[start : end+1]), nil
	}

	return nil, fmt.Errorf("deepseek: could not parse JSON from answer: %q", truncate(t, 200))
}

var langTagRE = regexp.MustCompile(`^[A-Za-z0-9_+-]{1,16}$`)

func isLangTag(s string) bool { return langTagRE.MatchString(strings.TrimSpace(s)) }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
