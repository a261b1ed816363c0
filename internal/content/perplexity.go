package content

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

	"github.com/teemow/newsletterpost/internal/instrumentation"
)

// Searcher answers free-form research queries.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// PerplexityConfig configures the Perplexity search client.
type PerplexityConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	MaxRetries int
	Metrics    *instrumentation.Metrics
	Logger     *slog.Logger
}

// Perplexity implements Searcher with Perplexity's OpenAI-compatible chat API.
type Perplexity struct {
	client  openai.Client
	model   string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewPerplexity creates a Perplexity search client.
func NewPerplexity(cfg PerplexityConfig) (*Perplexity, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("perplexity API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.perplexity.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "sonar"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Perplexity{
		client:  openai.NewClient(clientOptions(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient, cfg.MaxRetries)...),
		model:   cfg.Model,
		metrics: cfg.Metrics,
		logger:  logger,
	}, nil
}

// Search runs one query and returns the answer text.
func (p *Perplexity) Search(ctx context.Context, query string) (string, error) {
	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServicePerplexity, instrumentation.OperationChat)
	start := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(searchSystemPrompt),
			openai.UserMessage(query),
		},
		MaxTokens:   openai.Int(4000),
		Temperature: openai.Float(0.7),
		TopP:        openai.Float(0.9),
	},
		option.WithJSONSet("return_citations", false),
		option.WithJSONSet("return_images", false),
		option.WithJSONSet("return_related_questions", false),
	)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("perplexity returned no choices")
	}

	p.metrics.RecordLLMRequest(ctx, instrumentation.ServicePerplexity, p.model, instrumentation.StatusFor(err), time.Since(start))
	instrumentation.EndSpan(span, err)

	if err != nil {
		return "", fmt.Errorf("perplexity search failed: %w", err)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func clientOptions(apiKey, baseURL string, httpClient *http.Client, maxRetries int) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithMaxRetries(maxRetries),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return opts
}
