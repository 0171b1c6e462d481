// Package kb talks to the AMBOSS-style knowledge-base MCP endpoint. It
// issues a single JSON-RPC tool call per scenario and hands the raw JSON
// result to the feedback layer.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds one search call including response download.
const DefaultTimeout = 30 * time.Second

// Client calls the MCP tool "search_article_sections" via JSON-RPC 2.0.
// The endpoint may answer with plain JSON or with an SSE-framed body;
// both are handled transparently.
type Client struct {
	URL      string
	Token    string
	Language string
	HTTP     *http.Client
}

// NewClient constructs a knowledge-base client. An empty token disables
// the client (Enabled returns false); callers treat that as "no
// knowledge-base context available".
func NewClient(url, token string) *Client {
	return &Client{
		URL:      url,
		Token:    token,
		Language: "de",
		HTTP:     &http.Client{Timeout: DefaultTimeout},
	}
}

// Enabled reports whether the client has the configuration required to
// reach the endpoint.
func (c *Client) Enabled() bool {
	return c != nil && c.URL != "" && c.Token != ""
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// SearchArticleSections queries the knowledge base for sections matching
// the scenario and returns the unmodified JSON-RPC result.
func (c *Client) SearchArticleSections(ctx context.Context, query string) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("knowledge base not configured")
	}

	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  "tools/call",
		Params: rpcParams{
			Name:      "search_article_sections",
			Arguments: map[string]any{"query": query, "language": c.Language},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("knowledge base returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return parseResponse(resp.Header.Get("Content-Type"), raw)
}

// parseResponse handles both classic JSON bodies and SSE bodies where the
// JSON answer arrives line-wise behind "data:" prefixes.
func parseResponse(contentType string, body []byte) (json.RawMessage, error) {
	if strings.Contains(contentType, "application/json") {
		if !json.Valid(body) {
			return nil, fmt.Errorf("knowledge base returned invalid JSON")
		}
		return json.RawMessage(body), nil
	}

	var b strings.Builder
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data:") {
			b.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	joined := b.String()
	if joined == "" || !json.Valid([]byte(joined)) {
		return nil, fmt.Errorf("could not extract JSON from SSE payload")
	}
	return json.RawMessage(joined), nil
}
