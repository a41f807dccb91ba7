// Package llm is the boundary to the hosted text-generation service. It
// speaks the chat-completions wire format and nothing else; callers that
// need structured output parse it themselves.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"prepmate/internal/common"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Gateway is the generation boundary consumed by the services. Implemented
// by Client; tests substitute fakes.
type Gateway interface {
	Generate(ctx context.Context, systemPrompt string, messages []Message) (string, error)
	GenerateStream(ctx context.Context, systemPrompt string, messages []Message) (<-chan string, <-chan error)
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, model string, maxTokens int, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
		// Timeout covers the whole exchange for non-streaming calls;
		// streaming relies on the per-call context instead.
		httpClient: &http.Client{},
	}
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
		Delta   Message `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Client) newRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm.Client marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm.Client build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// Generate sends the system prompt and conversation and returns the
// assistant text. Provider or transport failures come back wrapped in
// common.ErrServiceUnavailable so callers can apply their degradation
// policy without inspecting transport details.
func (c *Client) Generate(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, chatRequest{
		Model:     c.model,
		Messages:  withSystem(systemPrompt, messages),
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm.Client request failed: %v: %w", err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm.Client status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), common.ErrServiceUnavailable)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm.Client decode response: %v: %w", err, common.ErrServiceUnavailable)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm.Client provider error: %s: %w", parsed.Error.Message, common.ErrServiceUnavailable)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm.Client empty choices: %w", common.ErrServiceUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}

// GenerateStream returns a finite, non-restartable sequence of text
// fragments. The text channel is closed at end-of-stream; at most one
// error is sent on the error channel, which is closed afterwards.
func (c *Client) GenerateStream(ctx context.Context, systemPrompt string, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		req, err := c.newRequest(ctx, chatRequest{
			Model:     c.model,
			Messages:  withSystem(systemPrompt, messages),
			MaxTokens: c.maxTokens,
			Stream:    true,
		})
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			errs <- fmt.Errorf("llm.Client stream request failed: %v: %w", err, common.ErrServiceUnavailable)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			errs <- fmt.Errorf("llm.Client stream status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), common.ErrServiceUnavailable)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				if data == "[DONE]" {
					return
				}
				continue
			}
			var parsed chatResponse
			if err := json.Unmarshal([]byte(data), &parsed); err != nil {
				// Skip malformed keep-alive frames rather than kill the stream.
				continue
			}
			if len(parsed.Choices) == 0 {
				continue
			}
			if delta := parsed.Choices[0].Delta.Content; delta != "" {
				select {
				case chunks <- delta:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("llm.Client stream read: %v: %w", err, common.ErrServiceUnavailable)
		}
	}()

	return chunks, errs
}

func withSystem(systemPrompt string, messages []Message) []Message {
	if systemPrompt == "" {
		return messages
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
	return append(out, messages...)
}
