// Package analyzer turns high-resolution editorial page images into a
// markdown Decision-Maker's Brief.
package analyzer

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/editorialbrief/internal/ai"
	"github.com/local/editorialbrief/internal/imagerender"
)

// Apology is returned in place of a brief whenever analysis cannot complete.
const Apology = "Error analyzing the pages. Please try again."

const briefPrompt = `You are an expert policy analyst. Analyze these high-resolution images of newspaper editorial pages.
Identify the 3-4 most important articles.

For each article, generate a "Decision-Maker's Brief" with the following format:

### [Title of the Article]
*   **Core Argument:** (2-3 sentences summarizing the main point)
*   **Key Data/Evidence:** (Bullet points of specific stats, names, or evidence cited)
*   **Policy Implications:** (Relevance for a senior government official)

Format the output in clean Markdown. Use bold headers and bullet points.`

type Analyzer struct {
	client    ai.Client
	model     string
	maxTokens int
}

func New(client ai.Client, model string) *Analyzer {
	return &Analyzer{client: client, model: model, maxTokens: 4096}
}

// Analyze never fails: errors are logged and replaced by Apology.
func (a *Analyzer) Analyze(ctx context.Context, images []imagerender.PageImage) string {
	req := ai.Request{
		Phase:     "analyze",
		Model:     a.model,
		Prompt:    briefPrompt,
		MaxTokens: a.maxTokens,
	}
	for _, img := range images {
		// thumbnails are too coarse to read article text
		if img.Tier != imagerender.TierHigh {
			log.Warn().Int("page", img.Page).Str("tier", string(img.Tier)).Msg("Skipping non high-res image")
			continue
		}
		req.Images = append(req.Images, ai.Image{MIME: img.MIME, Data: img.Data})
	}
	if len(req.Images) == 0 {
		log.Warn().Int("supplied", len(images)).Msg("No high-res pages to analyze")
		return Apology
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		log.Error().Err(err).Int("images", len(req.Images)).Msg("Error in analysis")
		return Apology
	}
	brief := strings.TrimSpace(resp.Text)
	if brief == "" {
		return Apology
	}
	return brief
}
