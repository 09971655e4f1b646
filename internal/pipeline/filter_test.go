package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ymori/newsdispatch/internal/digest"
	"github.com/ymori/newsdispatch/internal/storage/memory"
)

func TestFilterPreservesOrderAndTruncates(t *testing.T) {
	articles := memory.NewArticleStore()
	sentLog := memory.NewSentLog(articles)
	ctx := context.Background()
	userID := uuid.New()

	resolved, err := articles.Upsert(ctx, []digest.CandidateArticle{
		{URL: "https://example.com/1", Title: "one"},
		{URL: "https://example.com/2", Title: "two"},
		{URL: "https://example.com/3", Title: "three"},
		{URL: "https://example.com/4", Title: "four"},
	})
	require.NoError(t, err)

	require.NoError(t, sentLog.Record(ctx, userID,
		[]uuid.UUID{resolved["https://example.com/2"].ID}, time.Now()))

	ordered := []digest.Article{
		resolved["https://example.com/1"],
		resolved["https://example.com/2"],
		resolved["https://example.com/3"],
		resolved["https://example.com/4"],
	}

	f := NewSentHistoryFilter(sentLog)
	out, err := f.Filter(ctx, userID, ordered, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "https://example.com/1", out[0].URL)
	assert.Equal(t, "https://example.com/3", out[1].URL)
}

func TestFilterNoMax(t *testing.T) {
	articles := memory.NewArticleStore()
	sentLog := memory.NewSentLog(articles)
	ctx := context.Background()

	resolved, err := articles.Upsert(ctx, []digest.CandidateArticle{
		{URL: "https://example.com/1", Title: "one"},
		{URL: "https://example.com/2", Title: "two"},
	})
	require.NoError(t, err)

	f := NewSentHistoryFilter(sentLog)
	out, err := f.Filter(ctx, uuid.New(), []digest.Article{
		resolved["https://example.com/1"],
		resolved["https://example.com/2"],
	}, 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestFilterEmptyInput(t *testing.T) {
	articles := memory.NewArticleStore()
	f := NewSentHistoryFilter(memory.NewSentLog(articles))
	out, err := f.Filter(context.Background(), uuid.New(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}
