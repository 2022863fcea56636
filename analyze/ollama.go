package analyze

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama completes prompts against a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama connects to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllama(model, baseURL string) (*Ollama, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama requires a model name")
	}
	if baseURL == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("creating ollama client: %w", err)
		}
		return &Ollama{client: client, model: model}, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama url %q: %w", baseURL, err)
	}
	return &Ollama{client: api.NewClient(u, http.DefaultClient), model: model}, nil
}

func (o *Ollama) Complete(ctx context.Context, p Prompt) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": p.Temperature,
			"num_predict": p.MaxTokens,
		},
	}
	var out strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return out.String(), nil
}
