package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oceanbase/powermem-mcp/pkg/document"
	"github.com/oceanbase/powermem-mcp/pkg/llm"
)

// GeneralizedTag marks memories produced by generalization.
const GeneralizedTag = "generalized"

// Source is one memory feeding a generalization.
type Source struct {
	ID       string
	Document string
}

// Synthesizer writes a generalized memory from a cluster of similar ones.
//
// With an LLM it asks for a distilled pattern; without one, or when the LLM
// fails, it falls back to a deterministic summary built from the titles.
type Synthesizer struct {
	// llm is optional.
	llm llm.Provider
}

// NewSynthesizer creates a synthesizer. provider may be nil.
func NewSynthesizer(provider llm.Provider) *Synthesizer {
	return &Synthesizer{llm: provider}
}

// Generalize returns the fields of the generalized memory.
//
// The candidate is the memory that triggered generalization; sources are
// the existing similar memories.
func (s *Synthesizer) Generalize(ctx context.Context, candidate string, sources []Source) (document.Fields, error) {
	if err := ctx.Err(); err != nil {
		return document.Fields{}, err
	}

	docs := make([]string, 0, len(sources)+1)
	docs = append(docs, candidate)
	for _, src := range sources {
		docs = append(docs, src.Document)
	}

	if s.llm != nil {
		fields, err := s.generateWithLLM(ctx, docs)
		if err == nil {
			return withGeneralizedTag(fields), nil
		}
		if ctx.Err() != nil {
			return document.Fields{}, ctx.Err()
		}
	}

	return withGeneralizedTag(fallbackFields(docs)), nil
}

type generalization struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Tags        []string `json:"tags"`
}

func (s *Synthesizer) generateWithLLM(ctx context.Context, docs []string) (document.Fields, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: generalizationPrompt},
		{Role: llm.RoleUser, Content: formatSources(docs)},
	}

	response, err := s.llm.GenerateWithMessages(ctx, messages, llm.WithTemperature(0.2))
	if err != nil {
		return document.Fields{}, fmt.Errorf("generalize: %w", err)
	}

	var g generalization
	if err := json.Unmarshal([]byte(removeCodeBlocks(response)), &g); err != nil {
		return document.Fields{}, fmt.Errorf("generalize: invalid JSON response: %w", err)
	}
	if strings.TrimSpace(g.Title) == "" || strings.TrimSpace(g.Content) == "" {
		return document.Fields{}, fmt.Errorf("generalize: response is missing title or content")
	}

	return document.Fields{
		Title:       strings.TrimSpace(g.Title),
		Description: strings.TrimSpace(g.Description),
		Content:     strings.TrimSpace(g.Content),
		Tags:        g.Tags,
	}, nil
}

const generalizationPrompt = `You consolidate engineering memories into reusable patterns.

You receive several related memories. Write ONE generalized memory that captures the pattern they
share, keeping concrete commands, versions and pitfalls that apply to all of them.

Respond with a JSON object only:
{"title": "...", "description": "one sentence", "content": "markdown body", "tags": ["..."]}`

func formatSources(docs []string) string {
	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "## Memory %d\n%s\n\n", i+1, strings.TrimSpace(doc))
	}
	return b.String()
}

// fallbackFields lists the source titles and unions their tags.
func fallbackFields(docs []string) document.Fields {
	titles := make([]string, 0, len(docs))
	var tags []string
	seenTitle := map[string]bool{}
	seenTag := map[string]bool{}

	for _, doc := range docs {
		title := document.ExtractPreview(doc).Title
		if title == "" {
			title = firstLine(doc)
		}
		if key := document.NormalizeTitle(title); key != "" && !seenTitle[key] {
			seenTitle[key] = true
			titles = append(titles, title)
		}
		for _, tag := range document.ParseTags(doc) {
			if !seenTag[tag] {
				seenTag[tag] = true
				tags = append(tags, tag)
			}
		}
	}

	var content strings.Builder
	content.WriteString("Common pattern across related memories:\n")
	for _, title := range titles {
		fmt.Fprintf(&content, "- %s\n", title)
	}

	title := "Pattern"
	if len(titles) > 0 {
		title = "Pattern: " + titles[0]
	}

	return document.Fields{
		Title:       title,
		Description: fmt.Sprintf("Generalized from %d related memories", len(docs)),
		Content:     strings.TrimSpace(content.String()),
		Tags:        tags,
	}
}

func withGeneralizedTag(f document.Fields) document.Fields {
	for _, tag := range f.Tags {
		if tag == GeneralizedTag {
			return f
		}
	}
	f.Tags = append(f.Tags, GeneralizedTag)
	return f
}

func firstLine(doc string) string {
	doc = strings.TrimSpace(doc)
	if i := strings.IndexByte(doc, '\n'); i >= 0 {
		doc = doc[:i]
	}
	return strings.TrimSpace(doc)
}

// removeCodeBlocks strips ```json fences from an LLM response.
func removeCodeBlocks(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	return strings.TrimSpace(response)
}
