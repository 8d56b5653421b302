package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

type GPTResponse struct {
	Service string `json:"service"`
}

// GPTClassifier asks a chat model for the canonical service and falls back to
// the keyword tables whenever the model fails or answers with an unknown id.
type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	fallback    Classifier
	logger      *zap.Logger
}

func NewGPTClassifier(apiKey, baseURL, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &GPTClassifier{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		fallback:    NewSimpleClassifier(),
		logger:      logger,
	}
}

func (c *GPTClassifier) Classify(ctx context.Context, content string) (string, int) {
	ids := make([]string, 0, len(serviceNames))
	for _, s := range Services() {
		ids = append(ids, s.ID)
	}

	prompt := fmt.Sprintf(`Classify the appointment request below into exactly one service id.
Allowed ids: %s. Use "%s" when none applies.

Return only a JSON object with this structure:
{"service": "service_id"}

Request: %s`, strings.Join(ids, ", "), FallbackService, content)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		c.logger.Error("Failed to get GPT response", zap.Error(err))
		return c.fallback.Classify(ctx, content)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("GPT response has no choices")
		return c.fallback.Classify(ctx, content)
	}

	var gptResponse GPTResponse
	response := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(response), &gptResponse); err != nil {
		c.logger.Error("Failed to parse GPT response",
			zap.Error(err),
			zap.String("response", response))
		return c.fallback.Classify(ctx, content)
	}

	service := strings.ToLower(strings.TrimSpace(gptResponse.Service))
	if service == FallbackService {
		return c.fallback.Classify(ctx, content)
	}
	duration, known := DefaultDuration(service)
	if !known {
		c.logger.Warn("GPT returned unknown service", zap.String("service", service))
		return c.fallback.Classify(ctx, content)
	}

	if minutes, ok := ExplicitDuration(content); ok {
		duration = minutes
	}
	return service, duration
}
