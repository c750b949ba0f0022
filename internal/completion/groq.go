package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// GroqClient calls Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
	tracer      trace.Tracer
	meter       metric.Meter
}

// NewGroqClient creates a completion client against the given
// OpenAI-compatible base URL.
func NewGroqClient(apiKey, baseURL, model string, temperature float64, maxTokens int64, tracer trace.Tracer, meter metric.Meter) *GroqClient {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	)
	return &GroqClient{
		client:      &client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		tracer:      tracer,
		meter:       meter,
	}
}

// Complete sends the system instruction and user message to the model
func (g *GroqClient) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, span := g.tracer.Start(ctx, "groq_api_call")
	defer span.End()

	start := time.Now()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(g.temperature),
		MaxTokens:   openai.Int(g.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	duration := time.Since(start)
	histogram, err := g.meter.Float64Histogram(
		"completion.request.duration",
		metric.WithDescription("Chat completion request duration in milliseconds"),
	)
	if err == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}

	g.recordUsage(ctx, resp.Usage)

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}

	return resp.Choices[0].Message.Content, nil
}

// recordUsage records token usage counters from the completion response
func (g *GroqClient) recordUsage(ctx context.Context, usage openai.CompletionUsage) {
	counters := map[string]int64{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	}
	for key, value := range counters {
		counter, err := g.meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", key),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
		)
		if err != nil {
			continue
		}
		counter.Add(ctx, value)
	}
}
