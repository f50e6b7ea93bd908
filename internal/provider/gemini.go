package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"github.com/hyperengineering/voyager/internal/metrics"
	"github.com/hyperengineering/voyager/internal/ratelimit"
	"github.com/hyperengineering/voyager/internal/types"
)

// Compile-time interface check
var _ Client = (*GeminiClient)(nil)

// GeminiConfig configures the Gemini generateContent client.
type GeminiConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent endpoint.
// It makes exactly one attempt per call; every upstream failure becomes an empty answer.
type GeminiClient struct {
	http    *resty.Client
	model   string
	limiter *ratelimit.Limiter
}

// NewGeminiClient creates a Gemini client throttled by limiter.
func NewGeminiClient(cfg GeminiConfig, limiter *ratelimit.Limiter) *GeminiClient {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-goog-api-key", cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &GeminiClient{http: c, model: cfg.Model, limiter: limiter}
}

func (g *GeminiClient) Name() Name { return Gemini }

func (g *GeminiClient) RecommendMovie(ctx context.Context, favourites, history []string, temperature float64) (string, error) {
	return g.generate(ctx, buildPrompt(types.KindMovie, favourites, history), temperature)
}

func (g *GeminiClient) RecommendTvShow(ctx context.Context, favourites, history []string, temperature float64) (string, error) {
	return g.generate(ctx, buildPrompt(types.KindTV, favourites, history), temperature)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction geminiContent          `json:"system_instruction"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	ModelVersion string `json:"modelVersion"`
}

func (g *GeminiClient) generate(ctx context.Context, p prompt, temperature float64) (string, error) {
	if err := g.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ratelimit.ErrDailyCapExceeded) {
			metrics.ProviderRequests.WithLabelValues(string(Gemini), "rate_limited").Inc()
			return "", fmt.Errorf("gemini: %w: %w", ErrRateLimited, err)
		}
		return "", err
	}

	body := geminiRequest{
		SystemInstruction: geminiContent{Parts: []geminiPart{{Text: p.instruction}}},
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: p.favourites}, {Text: p.history}},
		}},
		GenerationConfig: geminiGenerationConfig{Temperature: temperature},
	}

	slog.Debug("sending recommendation request",
		"component", "provider",
		"provider", Gemini,
		"temperature", temperature,
	)

	resp, err := g.http.R().
		SetContext(ctx).
		SetPathParam("model", g.model).
		SetBody(&body).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return g.fail("request failed", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return g.fail("unexpected status", fmt.Errorf("status %d: %s", resp.StatusCode(), truncate(resp.String(), 200)))
	}

	var gr geminiResponse
	if err := json.Unmarshal(resp.Body(), &gr); err != nil {
		return g.fail("decode response", err)
	}

	text := ""
	if len(gr.Candidates) > 0 && gr.Candidates[0].Content != nil && len(gr.Candidates[0].Content.Parts) > 0 {
		text = strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	}
	if text == "" {
		metrics.ProviderRequests.WithLabelValues(string(Gemini), "empty").Inc()
		return "", nil
	}

	metrics.ProviderRequests.WithLabelValues(string(Gemini), "ok").Inc()
	return text, nil
}

func (g *GeminiClient) fail(msg string, err error) (string, error) {
	metrics.ProviderRequests.WithLabelValues(string(Gemini), "error").Inc()
	slog.Error(msg,
		"component", "provider",
		"provider", Gemini,
		"error", err,
	)
	return "", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
