package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"resume-copilot/internal/domain"
)

const defaultServiceURL = "http://ai-service:8000"

// Client calls the internal ai-service chat endpoint. The service owns model
// selection; this side only sends a prompt and reads back the raw output.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Attempts is the number of tries for transport errors. Values below 1
	// mean a single try.
	Attempts int
	Logger   *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, attempts int, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: timeout},
		Attempts: attempts,
		Logger:   logger,
	}
}

type chatRequest struct {
	Agent string `json:"agent"`
	Input string `json:"input"`
}

type chatResponse struct {
	Agent  string `json:"agent"`
	Output string `json:"output"`
}

// Complete sends prompt to {base}/v1/chat and returns the output field.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{Agent: "auto", Input: prompt})
	if err != nil {
		return "", err
	}

	resp, err := c.doPostWithRetry(ctx, "/v1/chat", body)
	if err != nil {
		return "", fmt.Errorf("%w: ai-service request: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read ai-service response: %w", domain.ErrUpstream, err)
	}
	c.logger().Debug("ai-service response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBytes)),
	)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: ai-service returned status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBytes, &chat); err != nil {
		return "", fmt.Errorf("%w: decode ai-service response: %w", domain.ErrUpstream, err)
	}
	return chat.Output, nil
}

// doPostWithRetry performs an HTTP POST to the given path with exponential
// backoff between transport failures.
func (c *Client) doPostWithRetry(ctx context.Context, path string, body []byte) (*http.Response, error) {
	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger().Warn("ai-service request failed",
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		if i < attempts-1 {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
