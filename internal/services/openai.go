package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/silentwatch/case-engine/pkg/dialogue"
)

const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIService implements LLMService on the OpenAI chat completions API.
// It is the fallback provider when no Gemini key is configured.
type OpenAIService struct {
	client    *openai.Client
	apiKey    string
	modelName string
}

// Ensure OpenAIService implements LLMService interface
var _ LLMService = (*OpenAIService)(nil)

// NewOpenAIService creates a new OpenAI service.
func NewOpenAIService(apiKey string, modelName string) *OpenAIService {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	return &OpenAIService{
		client:    openai.NewClient(apiKey),
		apiKey:    apiKey,
		modelName: modelName,
	}
}

func (o *OpenAIService) ModelName() string {
	return o.modelName
}

// Generate sends the prompt as a single user message. The prompt already
// contains the persona and history, so no system message is used.
func (o *OpenAIService) Generate(ctx context.Context, prompt string) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("openai: %w", dialogue.ErrMissingAPIKey)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: DefaultGeminiTemperature,
		MaxTokens:   DefaultGeminiMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return msgNoResponse, nil
	}
	return resp.Choices[0].Message.Content, nil
}
