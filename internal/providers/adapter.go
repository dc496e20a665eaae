package providers

import (
	"context"
	"fmt"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/llmrelay/relay/internal/cost"
	"github.com/llmrelay/relay/internal/dispatch"
)

// Adapter implements the CallProvider collaborator against any
// OpenAI-compatible chat-completions endpoint (OpenAI, OpenRouter, local
// gateways via BaseURL). Clients are created lazily and reused per provider.
type Adapter struct {
	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewAdapter creates an adapter with an empty client pool
func NewAdapter() *Adapter {
	return &Adapter{
		clients: make(map[string]*openai.Client),
	}
}

// client returns the cached client for a spec, creating one if needed
func (a *Adapter) client(spec dispatch.ProviderSpec) *openai.Client {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[spec.ProviderID]; ok {
		return c
	}

	cfg := openai.DefaultConfig(os.Getenv(spec.APIKeyEnv))
	if spec.BaseURL != "" {
		cfg.BaseURL = spec.BaseURL
	}
	c := openai.NewClientWithConfig(cfg)
	a.clients[spec.ProviderID] = c
	return c
}

// Call performs the outbound chat completion. Errors are returned unmodified
// so the dispatcher's failure classifier sees the provider's own message.
func (a *Adapter) Call(ctx context.Context, spec dispatch.ProviderSpec, req dispatch.Request) (string, int, int, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemMessage,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = spec.MaxTokens
	}

	resp, err := a.client(spec).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       spec.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", 0, 0, err
	}
	if len(resp.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("invalid response: model %s returned no choices", spec.Model)
	}

	content := resp.Choices[0].Message.Content
	inTokens, outTokens := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	// Some OpenAI-compatible gateways omit usage; count locally so cost
	// estimation and the spend ledger stay populated
	if inTokens == 0 && outTokens == 0 {
		inTokens = cost.CountTokens(spec.Model, req.SystemMessage+req.Prompt)
		outTokens = cost.CountTokens(spec.Model, content)
	}

	return content, inTokens, outTokens, nil
}
