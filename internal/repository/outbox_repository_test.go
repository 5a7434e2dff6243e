package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newOutboxRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOutboxRepositoryMarkAbandonedFlipsStatus(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE email_outbox SET status = 'failed', last_error = $1 WHERE id = $2")).
		WithArgs("smtp refused", "mail-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkAbandoned(context.Background(), "mail-1", "smtp refused"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryMarkFailedKeepsStatus(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE email_outbox SET attempts = $1, last_error = $2 WHERE id = $3")).
		WithArgs(2, "smtp refused", "mail-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "mail-1", 2, "smtp refused"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryCountQueued(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM email_outbox WHERE status = 'queued'")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.CountQueued(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
