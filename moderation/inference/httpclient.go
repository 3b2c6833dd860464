package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// HTTPClient speaks an OpenAI-style chat completions API. It retries on
// transient failures, rate-limits outbound calls so a flood of AI-stage
// invocations cannot hammer the provider, and enforces a per-call timeout.
type HTTPClient struct {
	Client  *http.Client
	Host    string
	APIKey  string
	Limiter *rate.Limiter
	Timeout time.Duration
}

var _ Provider = (*HTTPClient)(nil)

func NewHTTPClient(host, apiKey string, reqPerSec int) *HTTPClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second

	if reqPerSec <= 0 {
		reqPerSec = 10
	}
	return &HTTPClient{
		Client:  client,
		Host:    host,
		APIKey:  apiKey,
		Limiter: rate.NewLimiter(rate.Limit(reqPerSec), 1),
		Timeout: 15 * time.Second,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	body := chatRequest{
		Model:       req.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &respFormat{Type: "json_object"}
	}
	raw, err := json.Marshal(&body)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.Host+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "sentry-moderation/"+versioninfo.Short())
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	start := time.Now()
	res, err := c.Client.Do(httpReq)
	generateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			generateCount.WithLabelValues("timeout").Inc()
			return "", fmt.Errorf("%w: %v", ErrProviderTimeout, err)
		}
		generateCount.WithLabelValues("error").Inc()
		return "", fmt.Errorf("inference request failed: %w", err)
	}
	defer res.Body.Close()

	generateCount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return "", fmt.Errorf("inference request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read inference resp body: %w", err)
	}

	var respObj chatResponse
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return "", fmt.Errorf("failed to parse inference resp JSON: %w", err)
	}
	if len(respObj.Choices) == 0 {
		return "", fmt.Errorf("inference response contained no choices")
	}
	return respObj.Choices[0].Message.Content, nil
}

func (c *HTTPClient) IsModelAvailable(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.Host+"/v1/models", nil)
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	res, err := c.Client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("model listing failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return false, fmt.Errorf("model listing failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return false, err
	}
	var list modelList
	if err := json.Unmarshal(respBytes, &list); err != nil {
		return false, fmt.Errorf("failed to parse model list JSON: %w", err)
	}
	for _, m := range list.Data {
		if m.ID == name {
			return true, nil
		}
	}
	return false, nil
}
