// Package classifier locates the editorial section of a newspaper from
// low-resolution page thumbnails.
package classifier

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/editorialbrief/internal/ai"
	"github.com/local/editorialbrief/internal/imagerender"
)

const detectPrompt = `Analyze these newspaper pages. Identify the page numbers that contain the "Editorial", "Opinion", or "Ideas" sections.
Return ONLY a JSON array of integers representing the page numbers (1-based index corresponding to the order of images provided).
Example: [6, 7]
If none found, return [].`

var fencePattern = regexp.MustCompile("(?s)^\\s*```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// Classifier asks a vision model which of the supplied pages are editorial pages.
type Classifier struct {
	client ai.Client
	model  string
}

func New(client ai.Client, model string) *Classifier {
	return &Classifier{client: client, model: model}
}

// Detect issues one inference call for the whole batch and returns the
// 1-based indices of editorial pages in the order the images were given.
// Any failure yields an empty result; the caller treats that as "not found".
func (c *Classifier) Detect(ctx context.Context, images []imagerender.PageImage) []int {
	if len(images) == 0 {
		return []int{}
	}

	req := ai.Request{
		Phase:     "detect",
		Model:     c.model,
		Prompt:    detectPrompt,
		Images:    make([]ai.Image, 0, len(images)),
		MaxTokens: 256,
		JSON:      true,
	}
	for _, img := range images {
		req.Images = append(req.Images, ai.Image{MIME: img.MIME, Data: img.Data})
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		log.Error().Err(err).Int("images", len(images)).Msg("Page detection failed")
		return []int{}
	}

	pages := ParseIndices(resp.Text)
	log.Info().Ints("pages", pages).Int("images", len(images)).Msg("Page detection complete")
	return pages
}

// ParseIndices decodes a model response of the form [6, 7], optionally
// wrapped in a markdown code fence. Duplicates are dropped keeping first
// occurrence. Malformed input returns an empty slice.
func ParseIndices(raw string) []int {
	text := stripFences(raw)
	if text == "" {
		return []int{}
	}

	var values []int
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		log.Warn().Err(err).Str("raw", truncate(raw, 200)).Msg("Unparseable page detection response")
		return []int{}
	}

	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
