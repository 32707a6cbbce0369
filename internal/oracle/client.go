// Package oracle is the client for the external completion oracle, an
// OpenAI-compatible chat-completions endpoint. It exposes one
// non-streaming call for decision/summarization prompts and one
// streaming call whose raw SSE body is handed to the caller.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// UpstreamError carries the status and body of a non-success oracle
// response. For the main completion call it is fatal to the turn.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream API error %d: %s", e.Status, e.Body)
}

// Client talks to the completion oracle.
type Client struct {
	rc     *resty.Client
	stream *resty.Client
	model  string
}

// NewClient creates an oracle client for the given endpoint URL, API
// key and model name.
func NewClient(url, apiKey, model string) *Client {
	rc := resty.New().
		SetBaseURL(url).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey).
		SetTimeout(2 * time.Minute)
	// The streaming client carries no client timeout: http.Client's
	// timeout covers the whole body read and would sever long streams.
	// Cancellation comes from the request context instead.
	stream := resty.New().
		SetBaseURL(url).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(apiKey)
	return &Client{rc: rc, stream: stream, model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) newRequest(system, user string, stream bool) chatRequest {
	var msgs []chatMessage
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: user})
	return chatRequest{Model: c.model, Messages: msgs, Stream: stream}
}

// Complete issues a non-streaming completion and returns
// choices[0].message.content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	body := c.newRequest(system, user, false)

	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(&body).
		Post("")
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &UpstreamError{Status: resp.StatusCode(), Body: resp.String()}
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode oracle response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("oracle response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Stream issues a streaming completion and returns the raw SSE body.
// The caller owns the ReadCloser. A non-2xx status is returned as an
// *UpstreamError with the drained body; no stream is handed out.
func (c *Client) Stream(ctx context.Context, system, user string) (io.ReadCloser, error) {
	body := c.newRequest(system, user, true)

	resp, err := c.stream.R().
		SetContext(ctx).
		SetBody(&body).
		SetDoNotParseResponse(true).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}

	raw := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(raw, 4096))
		_ = raw.Close()
		return nil, &UpstreamError{Status: resp.StatusCode(), Body: string(detail)}
	}
	return raw, nil
}
