// Package translate implements batched title translation with a provider
// fallback chain. Translation failure is never fatal: callers always get a
// full-length result and untranslated entries simply stay empty.
package translate

import (
	"context"
	"regexp"
	"strings"
)

// Provider is one translation-capable backend. Providers are tried in order;
// any error moves the chain to the next one.
type Provider interface {
	Name() string
	// TranslateBatch translates an ordered list of titles and returns a
	// positionally parallel list.
	TranslateBatch(ctx context.Context, titles []string, targetLang string) ([]string, error)
	// TranslateText translates a single text or HTML fragment.
	TranslateText(ctx context.Context, text string, targetLang string) (string, error)
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// cleanJSONArray extracts a raw JSON array from a model response, stripping
// Markdown fences and surrounding prose.
func cleanJSONArray(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if m := jsonArrayPattern.FindString(content); m != "" {
		return m
	}
	return content
}

func batchSystemPrompt(targetLang string) string {
	return "You are a helpful assistant that translates a list of titles into " +
		targetLang + ". Output ONLY a raw JSON list of strings " +
		`(e.g. ["translated 1", "translated 2"]). ` +
		"Do not use Markdown code blocks. Maintain the original order and count."
}

func textSystemPrompt(targetLang string) string {
	return "You are a helpful assistant that translates text into " + targetLang +
		". If the text is HTML, translate only the visible text content while" +
		" preserving all HTML tags and structure." +
		" Do not use code blocks in your response."
}
