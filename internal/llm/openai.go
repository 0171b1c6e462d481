package llm

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls the OpenAI chat completion API. API credentials and
// the default model are loaded from environment variables.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIClient constructs an OpenAI-backed LLM client. It reads the API
// key and model name from the environment and falls back to sensible
// defaults (env: OPENAI_API_KEY, OPENAI_MODEL).
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	c := openai.NewClient(apiKey)

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIClient{
		client:       c,
		defaultModel: model,
	}
}

// Chat sends the message history to the chat completion API and returns
// the assistant's response with its token usage.
func (c *OpenAIClient) Chat(ctx context.Context, req Request) (*Response, error) {
	if c.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    oaMsgs,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ErrEmptyResponse{Model: model}
	}
	return &Response{
		Content: strings.TrimSpace(resp.Choices[0].Message.Content),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classifyError maps API failures onto the typed errors the retry layer
// understands. Unknown errors pass through unchanged.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return &ErrRateLimit{RetryAfter: 20 * time.Second, Err: err}
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return &ErrProviderUnavailable{Err: err}
		}
	}
	return err
}
