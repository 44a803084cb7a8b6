package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGroqBaseURL   = "https://api.groq.com/openai/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultGroqModel     = "llama-3.1-8b-instant"
	defaultTimeout       = 30 * time.Second

	maxResponseSize = 1 << 20
)

// ChatClient talks to an OpenAI-compatible chat completions endpoint.
type ChatClient struct {
	name       string
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAI returns a client for the OpenAI API.
func NewOpenAI(cfg Config) *ChatClient {
	return newChatClient(ProviderOpenAI, cfg, defaultOpenAIBaseURL, defaultOpenAIModel)
}

// NewGroq returns a client for Groq's OpenAI-compatible endpoint.
func NewGroq(cfg Config) *ChatClient {
	return newChatClient(ProviderGroq, cfg, defaultGroqBaseURL, defaultGroqModel)
}

func newChatClient(name string, cfg Config, baseURL, model string) *ChatClient {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChatClient{
		name:       name,
		url:        buildURL(baseURL),
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func buildURL(baseURL string) string {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// Name returns the provider identifier.
func (c *ChatClient) Name() string {
	return c.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends one chat completion request.
func (c *ChatClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", unavailable("%s: missing API key", c.name)
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	temperature := req.Temperature
	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: &temperature,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		body.MaxTokens = &maxTokens
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", unavailable("encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", unavailable("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", unavailable("%s request: %v", c.name, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return "", unavailable("read response: %v", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", unavailable("%s returned status %d: %s", c.name, httpResp.StatusCode, truncate(string(respBody), 200))
	}

	var resp chatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", unavailable("parse response: %v", err)
	}
	if resp.Error != nil {
		return "", unavailable("%s: %s", c.name, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", unavailable("%s: no choices in response", c.name)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", unavailable("%s: empty completion", c.name)
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Generator = (*ChatClient)(nil)
