package translate

import (
	"context"

	"go.uber.org/zap"

	"github.com/ymori/newsdispatch/internal/digest"
	"github.com/ymori/newsdispatch/internal/metrics"
)

const defaultBatchSize = 30

// Translator runs title batches through a chain of providers. The first
// provider that returns a structurally valid result wins; when every provider
// fails the batch stays untranslated.
//
// Whether a batch needs translating at all is the caller's decision: the
// planner compares the article language with the target before calling in.
type Translator struct {
	providers []Provider
	batchSize int
	logger    *zap.Logger
}

// New builds a Translator.
func New(providers []Provider, batchSize int, logger *zap.Logger) *Translator {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		providers: providers,
		batchSize: batchSize,
		logger:    logger,
	}
}

// TranslateTitles translates titles into targetLang. The result is always the
// same length and order as the input. Pairs whose batch could not be
// translated keep an empty Translated field.
func (t *Translator) TranslateTitles(ctx context.Context, titles []string, targetLang string) []digest.TitlePair {
	pairs := make([]digest.TitlePair, len(titles))
	for i, title := range titles {
		pairs[i].Original = title
	}
	if len(titles) == 0 || targetLang == "" {
		return pairs
	}
	if len(t.providers) == 0 {
		return pairs
	}

	for start := 0; start < len(titles); start += t.batchSize {
		end := start + t.batchSize
		if end > len(titles) {
			end = len(titles)
		}
		translated, ok := t.translateBatch(ctx, titles[start:end], targetLang)
		if !ok {
			metrics.ObserveTranslationFallback()
			t.logger.Warn("translation batch failed on every provider, keeping originals",
				zap.Int("batch_size", end-start), zap.String("target_language", targetLang))
			continue
		}
		for i, s := range translated {
			pairs[start+i].Translated = s
		}
	}
	return pairs
}

// translateBatch walks the provider chain for one batch. A result whose
// length does not match the input counts as a provider failure.
func (t *Translator) translateBatch(ctx context.Context, batch []string, targetLang string) ([]string, bool) {
	for _, p := range t.providers {
		translated, err := p.TranslateBatch(ctx, batch, targetLang)
		if err != nil {
			metrics.ObserveTranslationBatch(p.Name(), "error")
			t.logger.Warn("translation provider failed",
				zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if len(translated) != len(batch) {
			metrics.ObserveTranslationBatch(p.Name(), "mismatch")
			t.logger.Warn("translation provider returned wrong count",
				zap.String("provider", p.Name()),
				zap.Int("want", len(batch)), zap.Int("got", len(translated)))
			continue
		}
		metrics.ObserveTranslationBatch(p.Name(), "ok")
		return translated, true
	}
	return nil, false
}

// TranslateHTML translates an HTML fragment, keeping the tag structure
// intact. When no provider produces output with the same tag topology as the
// input, the original fragment comes back unchanged.
func (t *Translator) TranslateHTML(ctx context.Context, fragment string, targetLang string) string {
	if fragment == "" || targetLang == "" {
		return fragment
	}
	want := tagTopology(fragment)
	for _, p := range t.providers {
		translated, err := p.TranslateText(ctx, fragment, targetLang)
		if err != nil {
			t.logger.Warn("html translation provider failed",
				zap.String("provider", p.Name()), zap.Error(err))
			continue
		}
		if !topologyEqual(want, tagTopology(translated)) {
			t.logger.Warn("html translation changed tag structure, keeping original",
				zap.String("provider", p.Name()))
			continue
		}
		return translated
	}
	return fragment
}
