package analyze

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = shared.ChatModelGPT4oMini

// OpenAI completes prompts with the chat completions API.
type OpenAI struct {
	client openai.Client
	model  shared.ChatModel
}

// NewOpenAI builds a completer. An empty baseURL uses the public API.
// Requests are never retried.
func NewOpenAI(apiKey, model, baseURL string, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAI{client: openai.NewClient(reqOpts...), model: shared.ChatModel(model)}, nil
}

func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		Model:       o.model,
		MaxTokens:   openai.Int(p.MaxTokens),
		Temperature: openai.Float(p.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return completion.Choices[0].Message.Content, nil
}
