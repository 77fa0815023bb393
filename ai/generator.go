package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"panel-lab/contract"
	"panel-lab/domain"
)

// Generator calls an OpenAI-compatible Chat Completions backend and
// returns the full generated text in one piece. Timeouts are owned by
// the caller through ctx; the embedded http.Client carries no timeout
// of its own so the retry layer's per-attempt deadline is the only
// clock that matters.
type Generator struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	temp       float64
}

var _ contract.Generator = (*Generator)(nil)

func NewGenerator(baseURL, apiKey, model string, temp float64) *Generator {
	return &Generator{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		temp:       temp,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate performs one non-streaming completion. Every failure is
// returned as a plain error; the retry layer decides what to do with it.
func (g *Generator) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: prompt.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt.User})

	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: g.temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshalling completion request: %w", err)
	}

	url := g.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling completion backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion backend returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("completion backend error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion backend returned no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("completion backend returned an empty message")
	}
	return content, nil
}
