package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"

	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/logging"
)

// SearchToolName is the function name the model uses to call the Searcher.
const SearchToolName = "perplexity_search"

const searchToolDescription = "Useful for searching a specific link, SEO keywords for posts, trending hashtags " +
	"and the latest information on the web to create relevant posts, and for additional knowledge on certain " +
	"aspects of the content. Input is a single query string, which must contain the link when it is needed."

// ErrEmptyAnswer is returned when the model finishes without post text.
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Config configures a Generator.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	Temperature   float64
	MaxIterations int
	HTTPClient    *http.Client
	MaxRetries    int

	// Search is offered to the model as a tool when set.
	Search Searcher

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Generator writes LinkedIn post drafts.
type Generator struct {
	client        openai.Client
	model         string
	temperature   float64
	maxIterations int
	search        Searcher
	metrics       *instrumentation.Metrics
	logger        *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen/qwen3-32b"
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 2
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Generator{
		client:        openai.NewClient(clientOptions(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient, cfg.MaxRetries)...),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxIterations: cfg.MaxIterations,
		search:        cfg.Search,
		metrics:       cfg.Metrics,
		logger:        logger.With(logging.Service(instrumentation.ServiceGroq)),
	}, nil
}

// Generate writes a post about article, linking to link.
func (g *Generator) Generate(ctx context.Context, article, link string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SystemPrompt()),
		openai.UserMessage(TaskPrompt(article, link)),
	}

	for iteration := 1; iteration <= g.maxIterations; iteration++ {
		final := iteration == g.maxIterations

		msg, err := g.complete(ctx, messages, final)
		if err != nil {
			return "", err
		}

		if len(msg.ToolCalls) == 0 || final {
			answer := strings.TrimSpace(msg.Content)
			if answer == "" {
				return "", ErrEmptyAnswer
			}
			g.logger.InfoContext(ctx, "post generated",
				"iterations", iteration,
				"length", len([]rune(answer)))
			return answer, nil
		}

		messages = append(messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			messages = append(messages, openai.ToolMessage(g.runTool(ctx, call), call.ID))
		}
	}

	// maxIterations >= 1 and the final iteration always returns.
	return "", ErrEmptyAnswer
}

func (g *Generator) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, final bool) (*openai.ChatCompletionMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    messages,
		Temperature: openai.Float(g.temperature),
	}
	if g.search != nil {
		params.Tools = []openai.ChatCompletionToolParam{searchTool()}
		if final {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}
		}
	}

	ctx, span := instrumentation.StartAPISpan(ctx, instrumentation.ServiceGroq, instrumentation.OperationChat)
	start := time.Now()

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("model returned no choices")
	}

	g.metrics.RecordLLMRequest(ctx, instrumentation.ServiceGroq, g.model, instrumentation.StatusFor(err), time.Since(start))
	instrumentation.EndSpan(span, err)

	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	return &resp.Choices[0].Message, nil
}

// runTool executes one tool call. Failures are reported back to the model as
// text so it can continue without the result.
func (g *Generator) runTool(ctx context.Context, call openai.ChatCompletionMessageToolCall) string {
	if call.Function.Name != SearchToolName || g.search == nil {
		return fmt.Sprintf("Error: unknown tool %q", call.Function.Name)
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return "Error: the tool input must be a JSON object with a non-empty \"query\" string"
	}

	g.logger.DebugContext(ctx, "running search tool", "query", args.Query)

	answer, err := g.search.Search(ctx, args.Query)
	if err != nil {
		g.logger.WarnContext(ctx, "search tool failed", logging.Err(err))
		return "Error: " + err.Error()
	}
	return answer
}

func searchTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        SearchToolName,
			Description: openai.String(searchToolDescription),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query, including the article link when relevant.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}
