// Package search calls the web-search collaborator (Tavily contract).
// Search failures never propagate: a turn degrades to an empty result
// block instead of failing.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client performs web searches and formats results for prompt
// injection.
type Client struct {
	rc         *resty.Client
	apiKey     string
	maxResults int
	log        zerolog.Logger
}

// NewClient creates a search client for the given endpoint and key.
func NewClient(url, apiKey string, maxResults int, log zerolog.Logger) *Client {
	rc := resty.New().
		SetBaseURL(url).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &Client{rc: rc, apiKey: apiKey, maxResults: maxResults, log: log}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs a web search and returns numbered results formatted for
// prompt injection. Any failure yields the empty string.
func (c *Client) Search(ctx context.Context, query string) string {
	c.log.Debug().Str("query", query).Msg("running web search")

	body := searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: false,
		MaxResults:    c.maxResults,
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(&body).
		Post("")
	if err != nil {
		c.log.Warn().Err(err).Msg("web search request failed")
		return ""
	}
	if resp.StatusCode() != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode()).Msg("web search returned non-success status")
		return ""
	}

	var out searchResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		c.log.Warn().Err(err).Msg("web search response malformed")
		return ""
	}

	c.log.Debug().Int("results", len(out.Results)).Msg("web search completed")
	return formatResults(out)
}

func formatResults(out searchResponse) string {
	formatted := ""
	for i, item := range out.Results {
		if i > 0 {
			formatted += "\n\n"
		}
		formatted += fmt.Sprintf("[%d] %s: %s", i+1, item.Title, item.Content)
	}
	return formatted
}
