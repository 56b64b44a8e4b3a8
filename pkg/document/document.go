// Package document reads and writes the formatted text of a memory.
//
// A memory document is markdown-like text carrying labelled lines:
//
//	**Title:** Retry with jitter
//	**Description:** Backoff strategy for flaky upstreams
//	**Content:** ...
//	**Tags:** #backend #resilience
//
// Only the Title and Description lines are required for previews; any of
// them may be missing.
package document

import (
	"strings"
)

const (
	TitleMarker       = "**Title:**"
	DescriptionMarker = "**Description:**"
	ContentMarker     = "**Content:**"
	TagsMarker        = "**Tags:**"
)

// Preview is the short form of a document used in search results.
type Preview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ExtractPreview pulls the Title and Description lines out of doc.
// A line counts only when it starts with the marker; the last matching line
// wins. Missing markers yield empty strings.
func ExtractPreview(doc string) Preview {
	var p Preview
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, TitleMarker):
			p.Title = strings.TrimSpace(strings.TrimPrefix(line, TitleMarker))
		case strings.HasPrefix(line, DescriptionMarker):
			p.Description = strings.TrimSpace(strings.TrimPrefix(line, DescriptionMarker))
		}
	}
	return p
}

// Fields are the parts of a formatted document.
type Fields struct {
	Title       string
	Description string
	Content     string
	Tags        []string
}

// Format renders fields in the canonical layout. Empty parts are skipped.
func Format(f Fields) string {
	var lines []string
	if f.Title != "" {
		lines = append(lines, TitleMarker+" "+f.Title)
	}
	if f.Description != "" {
		lines = append(lines, DescriptionMarker+" "+f.Description)
	}
	if f.Content != "" {
		lines = append(lines, ContentMarker+" "+f.Content)
	}
	if len(f.Tags) > 0 {
		tags := make([]string, len(f.Tags))
		for i, t := range f.Tags {
			tags[i] = "#" + strings.TrimPrefix(t, "#")
		}
		lines = append(lines, TagsMarker+" "+strings.Join(tags, " "))
	}
	return strings.Join(lines, "\n")
}

// ParseTags returns the hashtags on the Tags line of doc, without the '#'.
func ParseTags(doc string) []string {
	var tags []string
	for _, line := range strings.Split(doc, "\n") {
		if !strings.HasPrefix(line, TagsMarker) {
			continue
		}
		tags = tags[:0]
		for _, field := range strings.Fields(strings.TrimPrefix(line, TagsMarker)) {
			if tag := strings.TrimPrefix(field, "#"); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// NormalizeTitle folds a title for equality checks: case and runs of
// whitespace are ignored.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
