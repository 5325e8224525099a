package util

import "strings"

// SplitKeywords turns a comma-separated keyword string into a trimmed,
// de-duplicated slice. Empty segments are dropped. Applying SplitKeywords to
// a re-joined result is a no-op.
func SplitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]struct{}{}
	for _, part := range parts {
		keyword := strings.TrimSpace(part)
		if keyword == "" {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
	}
	return out
}

// JoinKeywords renders a keyword slice back into its normalized wire form.
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ", ")
}

// HideBotToken obscures a bot token for logging, showing only the edges.
func HideBotToken(token string) string {
	if len(token) > 8 {
		return token[:4] + "..." + token[len(token)-4:]
	} else if len(token) > 4 {
		return token[:2] + "..." + token[len(token)-2:]
	} else if len(token) > 2 {
		return token[:1] + "..." + token[len(token)-1:]
	}
	return token
}
