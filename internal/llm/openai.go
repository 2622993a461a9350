package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAICompatProvider implements Provider for any OpenAI-compatible
// chat completions endpoint.
type OpenAICompatProvider struct {
	name     string
	endpoint string
	apiKey   string
	model    string
}

// NewOpenAICompat creates a provider. endpoint may be a base URL or the full
// chat completions URL.
func NewOpenAICompat(name, endpoint, apiKey, model string) *OpenAICompatProvider {
	if !strings.HasSuffix(endpoint, "/chat/completions") {
		endpoint = strings.TrimRight(endpoint, "/") + "/chat/completions"
	}
	return &OpenAICompatProvider{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
	}
}

func (p *OpenAICompatProvider) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAICompatProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body := chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
	}
	if body.Model == "" {
		body.Model = p.model
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	resp, err := postChatCompletion(ctx, p.endpoint, p.apiKey, body)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			pe.Provider = p.name
			return nil, pe
		}
		return nil, &ProviderError{Message: err.Error(), Provider: p.name}
	}
	return resp, nil
}

// Per-attempt deadlines come from the caller's context.
var chatHTTPClient = &http.Client{Timeout: 2 * time.Minute}

// postChatCompletion sends one chat completion request. Non-200 answers
// become a *ProviderError carrying the status code.
func postChatCompletion(ctx context.Context, url, apiKey string, body chatRequest) (*CompletionResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := chatHTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Message: truncate(string(raw), 300), StatusCode: resp.StatusCode}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("parse response: no choices")
	}
	choice := out.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        out.Model,
		InputTokens:  out.Usage.PromptTokens,
		OutputTokens: out.Usage.CompletionTokens,
		StopReason:   choice.FinishReason,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
