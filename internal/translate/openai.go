package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider translates via the OpenAI chat completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.ChatModel
}

// NewOpenAIProvider builds a provider. An empty model falls back to
// gpt-4o-mini.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{
		client: &client,
		model:  openai.ChatModel(model),
	}
}

// Name identifies the provider in logs.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// TranslateBatch sends all titles as one indexed JSON list and parses the
// structurally parallel list back.
func (p *OpenAIProvider) TranslateBatch(ctx context.Context, titles []string, targetLang string) ([]string, error) {
	payload, err := json.Marshal(titles)
	if err != nil {
		return nil, fmt.Errorf("marshal titles: %w", err)
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(batchSystemPrompt(targetLang)),
			openai.UserMessage(string(payload)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := cleanJSONArray(resp.Choices[0].Message.Content)
	var translated []string
	if err := json.Unmarshal([]byte(content), &translated); err != nil {
		return nil, fmt.Errorf("parse openai response: %w, content: %s", err, content)
	}
	return translated, nil
}

// TranslateText translates a single text or HTML fragment.
func (p *OpenAIProvider) TranslateText(ctx context.Context, text string, targetLang string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(textSystemPrompt(targetLang)),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return resp.Choices[0].Message.Content, nil
}
