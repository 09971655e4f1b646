package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider translates via the Anthropic messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicProvider builds a provider. An empty model falls back to
// claude-3-5-haiku-latest.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{
		client: &client,
		model:  anthropic.Model(model),
	}
}

// Name identifies the provider in logs.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// TranslateBatch sends all titles as one indexed JSON list and parses the
// structurally parallel list back.
func (p *AnthropicProvider) TranslateBatch(ctx context.Context, titles []string, targetLang string) ([]string, error) {
	payload, err := json.Marshal(titles)
	if err != nil {
		return nil, fmt.Errorf("marshal titles: %w", err)
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: batchSystemPrompt(targetLang)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(payload))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no response from anthropic")
	}

	content := cleanJSONArray(resp.Content[0].Text)
	var translated []string
	if err := json.Unmarshal([]byte(content), &translated); err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w, content: %s", err, content)
	}
	return translated, nil
}

// TranslateText translates a single text or HTML fragment.
func (p *AnthropicProvider) TranslateText(ctx context.Context, text string, targetLang string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: textSystemPrompt(targetLang)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return resp.Content[0].Text, nil
}
