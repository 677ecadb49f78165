package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"crypto-trade-bot-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Decision is the advisory's expected response: which candidate to act
// on. Confidence and reason are informational only; the engine never
// adopts an externally supplied confidence.
type Decision struct {
	Token      string  `json:"token"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// AdvisoryClient is the external-advisory contract: a textual summary
// of candidate signals in, a single ranked decision out.
type AdvisoryClient interface {
	Rank(ctx context.Context, summary string) (*Decision, error)
}

// Client talks to the external language-model advisory over HTTP.
type Client struct {
	client *resty.Client
	logger *zap.Logger
	model  string
}

var _ AdvisoryClient = (*Client)(nil)

// NewClient creates an advisory client.
func NewClient(cfg *config.Advisor, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	if cfg.ApiKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.ApiKey)
	}

	return &Client{
		client: client,
		logger: logger,
		model:  cfg.Model,
	}
}

type rankRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type rankResponse struct {
	Content string `json:"content"`
}

// Rank sends the candidate summary and parses the returned JSON object.
// Any schema deviation is an error; the arbiter treats every error as
// recoverable.
func (c *Client) Rank(ctx context.Context, summary string) (*Decision, error) {
	var result rankResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(rankRequest{Model: c.model, Prompt: summary}).
		SetResult(&result).
		SetHeader("Content-Type", "application/json").
		Post("/v1/rank")
	if err != nil {
		return nil, fmt.Errorf("advisory request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("advisory returned status %s", resp.Status())
	}

	var decision Decision
	if err := json.Unmarshal([]byte(extractJSON(result.Content)), &decision); err != nil {
		return nil, fmt.Errorf("advisory response is not valid JSON: %w", err)
	}
	if decision.Token == "" || decision.Action == "" {
		return nil, fmt.Errorf("advisory response missing token or action")
	}
	decision.Action = strings.ToUpper(decision.Action)
	return &decision, nil
}

// extractJSON pulls the first JSON object out of a model reply that may
// wrap it in prose or code fences.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return content
	}
	return content[start : end+1]
}
