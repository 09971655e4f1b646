package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentReportsRecordedURLs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log := NewSentLog(mock)
	userID := uuid.New()
	urls := []string{"https://example.com/a", "https://example.com/b"}

	mock.ExpectQuery("SELECT a.url").
		WithArgs(userID, urls).
		WillReturnRows(pgxmock.NewRows([]string{"url"}).AddRow("https://example.com/b"))

	sent, err := log.Sent(context.Background(), userID, urls)
	require.NoError(t, err)
	assert.False(t, sent["https://example.com/a"])
	assert.True(t, sent["https://example.com/b"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSentEmptyInput(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log := NewSentLog(mock)
	sent, err := log.Sent(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, sent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordIsIdempotent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log := NewSentLog(mock)
	userID := uuid.New()
	a1, a2 := uuid.New(), uuid.New()
	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO sent_articles").
		WithArgs(userID, a1, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Already recorded in an earlier confirmation; the conflict clause eats it.
	mock.ExpectExec("INSERT INTO sent_articles").
		WithArgs(userID, a2, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = log.Record(context.Background(), userID, []uuid.UUID{a1, a2}, at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
