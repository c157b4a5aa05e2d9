package processing

import (
	"fmt"
	"regexp"
	"strings"
)

var whitespace = regexp.MustCompile(`\s+`)

// SplitTags splits the comma separated tag list returned by the AI service.
// Empty segments, including trailing ones, are preserved.
func SplitTags(raw string) []string {
	return strings.Split(raw, ",")
}

// NormalizeTag turns a raw tag into a value the repository accepts as a tag name.
// Dots are not allowed in tag names, so they become spaces.
func NormalizeTag(raw string) string {
	return strings.TrimSpace(strings.ReplaceAll(raw, ".", " "))
}

// NormalizeTags normalizes every tag and drops the ones left empty.
func NormalizeTags(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		if t := NormalizeTag(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// TermList renders a property value holding candidate classification labels
// as the comma separated list the classify endpoint expects.
func TermList(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return stripBrackets(v)
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return stripBrackets(fmt.Sprint(v))
	}
}

func stripBrackets(s string) string {
	s = strings.ReplaceAll(s, "[", "")
	s = strings.ReplaceAll(s, "]", "")
	return strings.TrimSpace(s)
}

// IsPDF reports whether a document name denotes content the AI service can
// consume without a rendition.
func IsPDF(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf")
}

// CleanQuestion squeezes whitespace in a user supplied question.
func CleanQuestion(raw string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))
}
