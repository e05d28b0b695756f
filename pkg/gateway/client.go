// Package gateway is the HTTP client for the external answering service.
// The service is a black box: question plus prior turns in, answer plus
// citations out. Failures are surfaced to the caller as-is; there is no
// retry, caching, or rate limiting at this layer.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HistoryEntry is one prior turn, in the wire shape the service expects.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is one citation attached to an answer. Page is "N/A" when the
// source has no page structure.
type Source struct {
	File string `json:"file"`
	Page string `json:"page"`
	Link string `json:"link,omitempty"`
}

type AskResult struct {
	Answer  string         `json:"answer"`
	History []HistoryEntry `json:"chat_history"`
	Sources []Source       `json:"sources"`

	// Raw is the unparsed response body, kept for the audit trail.
	Raw []byte `json:"-"`
}

type IAnswerGateway interface {
	Ask(ctx context.Context, question string, history []HistoryEntry) (*AskResult, error)
}

type askRequest struct {
	Question    string         `json:"question"`
	ChatHistory []HistoryEntry `json:"chat_history"`
}

type client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) IAnswerGateway {
	return &client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *client) Ask(ctx context.Context, question string, history []HistoryEntry) (*AskResult, error) {
	if history == nil {
		history = []HistoryEntry{}
	}
	payload := askRequest{
		Question:    question,
		ChatHistory: history,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payloadJSON))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway error: status %d, body: %s", res.StatusCode, string(resBody))
	}

	var result AskResult
	if err := json.Unmarshal(resBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	result.Raw = resBody

	return &result, nil
}
