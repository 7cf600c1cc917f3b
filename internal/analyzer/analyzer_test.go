package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/editorialbrief/internal/ai"
	"github.com/local/editorialbrief/internal/imagerender"
)

type stubClient struct {
	text  string
	err   error
	calls int
	last  ai.Request
}

func (s *stubClient) Name() string { return "stub" }

func (s *stubClient) Do(ctx context.Context, req ai.Request) (ai.Response, error) {
	s.calls++
	s.last = req
	return ai.Response{Text: s.text}, s.err
}

func page(tier imagerender.Tier, n int) imagerender.PageImage {
	return imagerender.PageImage{Tier: tier, Page: n, MIME: "image/jpeg", Data: []byte{byte(n)}}
}

func TestAnalyze_ReturnsBrief(t *testing.T) {
	client := &stubClient{text: "### Title\n*   **Core Argument:** x\n"}
	a := New(client, "gemini-1.5-flash")

	brief := a.Analyze(context.Background(), []imagerender.PageImage{page(imagerender.TierHigh, 6), page(imagerender.TierHigh, 7)})
	assert.Equal(t, "### Title\n*   **Core Argument:** x", brief)
	assert.Equal(t, 1, client.calls)
	require.Len(t, client.last.Images, 2)
	assert.Equal(t, []byte{6}, client.last.Images[0].Data)
	assert.Equal(t, "analyze", client.last.Phase)
	assert.Contains(t, client.last.Prompt, "Policy Implications")
}

func TestAnalyze_FailureReturnsApology(t *testing.T) {
	client := &stubClient{err: errors.New("quota")}
	brief := New(client, "m").Analyze(context.Background(), []imagerender.PageImage{page(imagerender.TierHigh, 1)})
	assert.Equal(t, Apology, brief)
}

func TestAnalyze_EmptyTextReturnsApology(t *testing.T) {
	client := &stubClient{text: "   "}
	brief := New(client, "m").Analyze(context.Background(), []imagerender.PageImage{page(imagerender.TierHigh, 1)})
	assert.Equal(t, Apology, brief)
}

func TestAnalyze_NoImages(t *testing.T) {
	client := &stubClient{text: "brief"}
	assert.Equal(t, Apology, New(client, "m").Analyze(context.Background(), nil))
	assert.Equal(t, 0, client.calls)
}

func TestAnalyze_RejectsLowTier(t *testing.T) {
	client := &stubClient{text: "brief"}
	a := New(client, "m")

	assert.Equal(t, Apology, a.Analyze(context.Background(), []imagerender.PageImage{page(imagerender.TierLow, 1)}))
	assert.Equal(t, 0, client.calls)

	brief := a.Analyze(context.Background(), []imagerender.PageImage{page(imagerender.TierLow, 1), page(imagerender.TierHigh, 2)})
	assert.Equal(t, "brief", brief)
	require.Len(t, client.last.Images, 1)
	assert.Equal(t, []byte{2}, client.last.Images[0].Data)
}
