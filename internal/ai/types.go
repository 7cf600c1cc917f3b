package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	mpkg "github.com/local/editorialbrief/internal/metrics"
)

// Image is one inline image sent alongside the prompt.
type Image struct {
	MIME string
	Data []byte
}

// Request represents one multimodal inference call: a prompt plus images.
type Request struct {
	Phase     string // "detect"|"analyze", used for metrics and logs
	Model     string
	Prompt    string
	Images    []Image
	MaxTokens int
	// JSON asks for a JSON-only response. Gemini enforces it; OpenAI and
	// Anthropic rely on the prompt since the classifier expects a bare array.
	JSON bool
}

type Response struct {
	Text      string
	TokensIn  int
	TokensOut int
}

// Client interface for providers like Gemini, OpenAI, Anthropic.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

var (
	ErrRateLimited    = errors.New("rate_limited")
	ErrContentRefused = errors.New("content_refused")
	ErrEmptyResponse  = errors.New("empty_response")
	ErrMissingAPIKey  = errors.New("missing api key")
)

func IsRateLimited(err error) bool    { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }

// HTTPError represents an HTTP status error from an AI provider
type HTTPError struct {
	StatusCode int
	Body       string
	Provider   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Provider, e.Body)
}

// Observed wraps a Client with a per-call timeout, metrics and logging.
type Observed struct {
	Client  Client
	Timeout time.Duration
}

func (o Observed) Name() string { return o.Client.Name() }

func (o Observed) Do(ctx context.Context, req Request) (Response, error) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := o.Client.Do(ctx, req)
	dur := time.Since(start)

	result := classify(err)
	mpkg.ObserveInference(o.Client.Name(), req.Model, req.Phase, result, dur)

	if err != nil {
		log.Warn().
			Err(err).
			Str("provider", o.Client.Name()).
			Str("model", req.Model).
			Str("phase", req.Phase).
			Int("images", len(req.Images)).
			Dur("duration", dur).
			Str("result", result).
			Msg("AI provider call failed")
		return resp, err
	}
	log.Debug().
		Str("provider", o.Client.Name()).
		Str("model", req.Model).
		Str("phase", req.Phase).
		Int("images", len(req.Images)).
		Dur("duration", dur).
		Int("tokens_in", resp.TokensIn).
		Int("tokens_out", resp.TokensOut).
		Msg("AI provider call success")
	return resp, nil
}

func classify(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case IsRateLimited(err):
		return "rate_limited"
	case IsContentRefused(err):
		return "content_refused"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.As(err, &httpErr):
		if httpErr.StatusCode >= 500 {
			return "server_error"
		}
		return "client_error"
	default:
		return "unknown"
	}
}
