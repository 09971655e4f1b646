package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ymori/newsdispatch/internal/digest"
)

func TestUpsertInsertsAndResolves(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewArticleStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	id1, id2 := uuid.New(), uuid.New()

	candidates := []digest.CandidateArticle{
		{URL: "https://example.com/a", Title: "A", PublishedAt: now},
		{URL: "https://example.com/b", Title: "B", PublishedAt: now},
		{URL: "https://example.com/a", Title: "A duplicate", PublishedAt: now},
	}

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(pgxmock.AnyArg(), "https://example.com/a", "A", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO articles").
		WithArgs(pgxmock.AnyArg(), "https://example.com/b", "B", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id, url, title, published_at").
		WithArgs([]string{"https://example.com/a", "https://example.com/b"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "title", "published_at"}).
			AddRow(id1, "https://example.com/a", "A", now).
			AddRow(id2, "https://example.com/b", "B", now))

	resolved, err := store.Upsert(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, id1, resolved["https://example.com/a"].ID)
	assert.Equal(t, id2, resolved["https://example.com/b"].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertKeepsFirstWrittenRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewArticleStore(mock)
	now := time.Unix(1700000000, 0).UTC()
	earlier := now.Add(-24 * time.Hour)
	existingID := uuid.New()

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(pgxmock.AnyArg(), "https://example.com/a", "Fresh title", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT id, url, title, published_at").
		WithArgs([]string{"https://example.com/a"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "url", "title", "published_at"}).
			AddRow(existingID, "https://example.com/a", "Original title", earlier))

	resolved, err := store.Upsert(context.Background(), []digest.CandidateArticle{
		{URL: "https://example.com/a", Title: "Fresh title", PublishedAt: now},
	})
	require.NoError(t, err)
	assert.Equal(t, "Original title", resolved["https://example.com/a"].Title)
	assert.Equal(t, earlier, resolved["https://example.com/a"].PublishedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertEmptyInput(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewArticleStore(mock)
	resolved, err := store.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, resolved)
	require.NoError(t, mock.ExpectationsWereMet())
}
