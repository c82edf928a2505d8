package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/whereitwent/whereitwent/internal/core/domain"
)

const defaultModel = "gpt-4o-mini"

const instructions = `You are a federal spending analyst. Given a set of
awards for a recipient or location, write a short plain-language summary:
who received the money, from which agencies, the dominant amount range and
anything notable about the time span. Three to five sentences, no bullet
points, no speculation beyond the data provided.`

// Client implements ports.SummaryGenerator over the chat completions API.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// New creates a summary client. Model falls back to gpt-4o-mini.
func New(baseURL, apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize produces a prose summary of the awards backing a report.
func (c *Client) Summarize(ctx context.Context, report *domain.Report, awards []domain.Award) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openai: API key is not configured")
	}

	payload, err := json.Marshal(map[string]any{
		"recipient": report.Recipient,
		"state":     report.State,
		"zip":       report.Zip,
		"awards":    awards,
	})
	if err != nil {
		return "", err
	}

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: instructions + "\n" + string(payload)},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("POST /chat/completions: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned HTTP %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai returned an empty summary")
	}
	return text, nil
}
