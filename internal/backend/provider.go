package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider owns the AI-provider session (§4.2). Generate never executes
// shell commands itself; it only produces the raw text the backend's
// grammar parser (grammar.go) turns into cmd:/edit:.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// OpenAICompatibleProvider talks to any Chat Completions-compatible HTTP
// endpoint (OpenAI itself, and the many local/hosted servers that mirror
// its API).
type OpenAICompatibleProvider struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewOpenAICompatibleProvider constructs a provider bound to baseURL/model,
// authenticating with apiKey.
func NewOpenAICompatibleProvider(baseURL, apiKey, model string) *OpenAICompatibleProvider {
	return &OpenAICompatibleProvider{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		maxTokens:   512,
		temperature: 0.2,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionsResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Generate sends a single chat-completion request and returns its raw text.
func (p *OpenAICompatibleProvider) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	reqBody := chatCompletionsRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMessage},
		},
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	p.setHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("backend: API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result chatCompletionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("backend: parse response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("backend: API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("backend: no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

func (p *OpenAICompatibleProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}
