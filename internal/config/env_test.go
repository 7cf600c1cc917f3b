package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("AI_ENGINE", "")
	t.Setenv("MAX_THUMBNAIL_PAGES", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("DETECTION_MODEL", "")
	t.Setenv("ANALYSIS_MODEL", "")
	t.Setenv("RENDER_COLOR_MODE", "")

	cfg := FromEnv()

	assert.Equal(t, "gemini", cfg.AI.Engine)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.DetectionModel)
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.AnalysisModel)
	assert.Equal(t, "rgb", cfg.Render.ColorMode)
	assert.Equal(t, 12, cfg.Render.MaxThumbnailPages)
	assert.Equal(t, 72, cfg.Render.LowDPI)
	assert.Equal(t, 300, cfg.Render.HighDPI)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, time.Duration(0), cfg.Session.TTL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("AI_ENGINE", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DETECTION_MODEL", "")
	t.Setenv("MAX_THUMBNAIL_PAGES", "4")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("RENDER_COLOR_MODE", "Gray")

	cfg := FromEnv()

	assert.Equal(t, "openai", cfg.AI.Engine)
	assert.Equal(t, "sk-test", cfg.AI.APIKey())
	assert.Equal(t, "gpt-4.1-mini", cfg.AI.DetectionModel)
	assert.Equal(t, 4, cfg.Render.MaxThumbnailPages)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "gray", cfg.Render.ColorMode)
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", defaultModel("gemini"))
	assert.Equal(t, "gpt-4.1-mini", defaultModel("openai"))
	assert.Equal(t, "claude-sonnet-4-5", defaultModel("anthropic"))
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, 7, parseInt("x", 7))
	assert.Equal(t, 3, parseInt("3", 7))
	assert.True(t, parseBool(" Yes "))
	assert.False(t, parseBool("nope"))
	assert.Equal(t, time.Second, parseDuration("bad", time.Second))
}
