package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/voyager/internal/metrics"
	"github.com/hyperengineering/voyager/internal/ratelimit"
	"github.com/hyperengineering/voyager/internal/types"
)

// Compile-time interface check
var _ Client = (*GroqClient)(nil)

// ChatCompletionsService is the slice of the OpenAI SDK the Groq client uses.
// Groq exposes an OpenAI-compatible API, so the SDK is pointed at its base URL.
type ChatCompletionsService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// GroqConfig configures the Groq chat completions client.
type GroqConfig struct {
	BaseURL          string
	APIKey           string
	Model            string
	Timeout          time.Duration
	MaxAttempts      int
	RateLimitBackoff time.Duration // wait after an upstream 429
	ErrorBackoff     time.Duration // wait after any other failure
	MaxTokens        int64
}

// GroqClient calls Groq chat completions with bounded retry.
type GroqClient struct {
	completions      ChatCompletionsService
	model            string
	maxTokens        int64
	limiter          *ratelimit.Limiter
	maxAttempts      int
	rateLimitBackoff time.Duration
	errorBackoff     time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
}

// NewGroqClient creates a Groq client throttled by limiter.
func NewGroqClient(cfg GroqConfig, limiter *ratelimit.Limiter) *GroqClient {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	return newGroqClient(client.Chat.Completions, cfg, limiter)
}

func newGroqClient(svc ChatCompletionsService, cfg GroqConfig, limiter *ratelimit.Limiter) *GroqClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &GroqClient{
		completions:      svc,
		model:            cfg.Model,
		maxTokens:        cfg.MaxTokens,
		limiter:          limiter,
		maxAttempts:      cfg.MaxAttempts,
		rateLimitBackoff: cfg.RateLimitBackoff,
		errorBackoff:     cfg.ErrorBackoff,
		sleep:            ratelimit.SleepContext,
	}
}

func (g *GroqClient) Name() Name { return Groq }

func (g *GroqClient) RecommendMovie(ctx context.Context, favourites, history []string, temperature float64) (string, error) {
	return g.complete(ctx, buildPrompt(types.KindMovie, favourites, history), temperature)
}

func (g *GroqClient) RecommendTvShow(ctx context.Context, favourites, history []string, temperature float64) (string, error) {
	return g.complete(ctx, buildPrompt(types.KindTV, favourites, history), temperature)
}

func (g *GroqClient) complete(ctx context.Context, p prompt, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.instruction),
			openai.UserMessage(p.userTurn()),
		}),
		Model:       openai.F(openai.ChatModel(g.model)),
		Temperature: openai.F(temperature),
		TopP:        openai.F(1.0),
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.F(g.maxTokens)
	}

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		// The daily cap is not retried.
		if err := g.limiter.Acquire(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrDailyCapExceeded) {
				metrics.ProviderRequests.WithLabelValues(string(Groq), "rate_limited").Inc()
				return "", fmt.Errorf("groq: %w: %w", ErrRateLimited, err)
			}
			return "", err
		}

		resp, err := g.completions.New(ctx, params)
		if err == nil {
			return g.extract(resp), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			slog.Warn("upstream rate limited",
				"component", "provider",
				"provider", Groq,
				"attempt", attempt,
				"max_attempts", g.maxAttempts,
			)
			if attempt == g.maxAttempts {
				metrics.ProviderRequests.WithLabelValues(string(Groq), "rate_limited").Inc()
				return "", fmt.Errorf("groq: %w after %d attempts: %w", ErrRateLimited, attempt, err)
			}
			if err := g.sleep(ctx, g.rateLimitBackoff); err != nil {
				return "", err
			}
			continue
		}

		slog.Error("recommendation request failed",
			"component", "provider",
			"provider", Groq,
			"attempt", attempt,
			"max_attempts", g.maxAttempts,
			"error", err,
		)
		if attempt == g.maxAttempts {
			metrics.ProviderRequests.WithLabelValues(string(Groq), "error").Inc()
			return "", nil
		}
		if err := g.sleep(ctx, g.errorBackoff); err != nil {
			return "", err
		}
	}

	return "", nil
}

func (g *GroqClient) extract(resp *openai.ChatCompletion) string {
	text := ""
	if resp != nil && len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if text == "" {
		metrics.ProviderRequests.WithLabelValues(string(Groq), "empty").Inc()
		return ""
	}
	metrics.ProviderRequests.WithLabelValues(string(Groq), "ok").Inc()
	return text
}
