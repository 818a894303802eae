package forecast

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Reasoner is the external reasoning collaborator: one prompt in, structured
// JSON-shaped text out, or an error. Implementations must honor ctx.
type Reasoner interface {
	Analyze(ctx context.Context, prompt string) (string, error)
}

// OpenAIReasoner asks an OpenAI-compatible chat model for the analysis.
type OpenAIReasoner struct {
	client *openai.Client
	model  string
}

// NewOpenAIReasoner builds a reasoner for the given API key and model.
// An empty model defaults to gpt-4o-mini.
func NewOpenAIReasoner(apiKey, model string) *OpenAIReasoner {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIReasoner{client: openai.NewClient(apiKey), model: model}
}

func (r *OpenAIReasoner) Analyze(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a parking data analyst."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
