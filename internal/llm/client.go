package llm

import "context"

// Message is a minimal chat message passed to the model.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request describes a single completion call. Model is optional and
// overrides the client default; Temperature of 0 means the client default.
type Request struct {
	Messages    []Message
	Temperature float32
	Model       string
}

// Usage reports token consumption for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response holds the model output together with its token usage.
type Response struct {
	Content string
	Usage   Usage
}

// Client is the interface every prompt stage talks to. Implementations
// must be safe for concurrent use.
type Client interface {
	Chat(ctx context.Context, req Request) (*Response, error)
}
