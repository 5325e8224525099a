package scheduler

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/visorry/flash-invite-sub001/internal/models"
)

var linkPattern = regexp.MustCompile(`(?i)\b(?:https?://|t\.me/|www\.)\S+`)

// PostKind classifies a source post for content filtering.
type PostKind int

// Post kinds recognized by forward rule content filters.
const (
	PostText PostKind = iota
	PostMedia
	PostDocument
	PostSticker
	PostPoll
)

// ShouldForward applies a rule's content-type filters and keyword filters to
// a post. Keyword matching is case insensitive against the post text.
func ShouldForward(rule *models.ForwardRule, kind PostKind, text string) bool {
	switch kind {
	case PostText:
		if !rule.ForwardText {
			return false
		}
	case PostMedia:
		if !rule.ForwardMedia {
			return false
		}
	case PostDocument:
		if !rule.ForwardDocuments {
			return false
		}
	case PostSticker:
		if !rule.ForwardStickers {
			return false
		}
	case PostPoll:
		if !rule.ForwardPolls {
			return false
		}
	}

	lower := strings.ToLower(text)
	if exclude := decodeKeywords(rule.ExcludeKeywords); len(exclude) > 0 {
		for _, kw := range exclude {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return false
			}
		}
	}
	if include := decodeKeywords(rule.IncludeKeywords); len(include) > 0 {
		for _, kw := range include {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
		return false
	}
	return true
}

// TransformText applies a rule's text modifications: watermark stripping,
// link removal and watermark appending, in that order.
func TransformText(rule *models.ForwardRule, text string) string {
	out := text
	if rule.DeleteWatermark != "" {
		out = strings.ReplaceAll(out, rule.DeleteWatermark, "")
	}
	if rule.RemoveLinks {
		out = linkPattern.ReplaceAllString(out, "")
	}
	out = strings.TrimSpace(out)
	if rule.AddWatermark && rule.WatermarkText != "" {
		if out == "" {
			out = rule.WatermarkText
		} else {
			out = out + "\n\n" + rule.WatermarkText
		}
	}
	return out
}

// decodeKeywords unpacks a stored keyword list, tolerating malformed JSON.
func decodeKeywords(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var keywords []string
	if errDecode := json.Unmarshal(raw, &keywords); errDecode != nil {
		return nil
	}
	return keywords
}
