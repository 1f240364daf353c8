package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/silentwatch/case-engine/pkg/dialogue"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	msgNoResponse = "(no response)"

	DefaultGeminiModel       = "gemini-2.5-flash"
	DefaultGeminiTemperature = 0.7
	DefaultGeminiMaxTokens   = 512
)

// GeminiService implements LLMService for the Google Gemini API.
type GeminiService struct {
	apiKey     string
	modelName  string
	httpClient *http.Client
}

// Ensure GeminiService implements LLMService interface
var _ LLMService = (*GeminiService)(nil)

// GeminiPart is a single content part.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiContent is one content block in a request or candidate.
type GeminiContent struct {
	Parts []GeminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

// GeminiGenerationConfig tunes the completion.
type GeminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// GeminiRequest represents the generateContent request body.
type GeminiRequest struct {
	Contents         []GeminiContent         `json:"contents"`
	GenerationConfig *GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiCandidate is a single completion candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

// GeminiResponse represents the generateContent response body.
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
	Error      *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiService creates a new Gemini service.
func NewGeminiService(apiKey string, modelName string) *GeminiService {
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	return &GeminiService{
		apiKey:    apiKey,
		modelName: modelName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (g *GeminiService) ModelName() string {
	return g.modelName
}

// Generate runs a single-prompt completion against generateContent.
func (g *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini: %w", dialogue.ErrMissingAPIKey)
	}

	geminiReq := GeminiRequest{
		Contents: []GeminiContent{
			{Parts: []GeminiPart{{Text: prompt}}},
		},
		GenerationConfig: &GeminiGenerationConfig{
			Temperature:     DefaultGeminiTemperature,
			MaxOutputTokens: DefaultGeminiMaxTokens,
		},
	}

	reqBody, err := json.Marshal(geminiReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, g.modelName, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if geminiResp.Error != nil {
		return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return msgNoResponse, nil
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}
