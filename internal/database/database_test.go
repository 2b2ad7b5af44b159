package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradechamp/tradechamp-server/internal/database"
	"github.com/tradechamp/tradechamp-server/pkg/apperrors"
)

func newTestDB(t *testing.T) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return database.New(pool, time.Second), mock
}

func TestQueryParams(t *testing.T) {
	ctx := context.Background()

	t.Run("blank query is invalid input regardless of params", func(t *testing.T) {
		db, mock := newTestDB(t)

		for _, query := range []string{"", "   "} {
			_, err := db.QueryParams(ctx, query, 1, "x")
			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.KindInvalidInput, appErr.Kind)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns rows and field metadata", func(t *testing.T) {
		db, mock := newTestDB(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT userID, username FROM user WHERE userID = ?`)).
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"userID", "username"}).AddRow(int64(7), "alice"))

		result, err := db.QueryParams(ctx, `SELECT userID, username FROM user WHERE userID = ?`, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"userID", "username"}, result.Columns)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, int64(7), result.Rows[0]["userID"])
		assert.Equal(t, "alice", result.Rows[0]["username"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("byte slices become strings", func(t *testing.T) {
		db, mock := newTestDB(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT email FROM user`)).
			WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow([]byte("a@x.com")))

		result, err := db.Query(ctx, `SELECT email FROM user`)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", result.Rows[0]["email"])
	})

	t.Run("driver errors propagate as typed database failures", func(t *testing.T) {
		db, mock := newTestDB(t)

		driverErr := errors.New("connection refused")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1`)).WillReturnError(driverErr)

		_, err := db.Query(ctx, `SELECT 1`)
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.KindDatabase, appErr.Kind)
		assert.ErrorIs(t, err, driverErr)
	})

	t.Run("deadline expiry is a distinguishable timeout", func(t *testing.T) {
		db, mock := newTestDB(t)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT 1`)).WillReturnError(context.DeadlineExceeded)

		_, err := db.Query(ctx, `SELECT 1`)
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.KindQueryTimeout, appErr.Kind)
	})
}

func TestExec(t *testing.T) {
	ctx := context.Background()

	t.Run("reports affected rows", func(t *testing.T) {
		db, mock := newTestDB(t)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE user SET coins = coins + ? WHERE userID = ?`)).
			WithArgs(10, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))

		affected, err := db.Exec(ctx, `UPDATE user SET coins = coins + ? WHERE userID = ?`, 10, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(1), affected)
	})

	t.Run("blank statement is invalid input", func(t *testing.T) {
		db, _ := newTestDB(t)

		_, err := db.Exec(ctx, "")
		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.KindInvalidInput, appErr.Kind)
	})
}

func TestCloseIsTerminal(t *testing.T) {
	db, mock := newTestDB(t)
	mock.ExpectClose()

	require.NoError(t, db.Close())

	_, err := db.Query(context.Background(), `SELECT 1`)
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindDatabase, appErr.Kind)

	_, err = db.Exec(context.Background(), `DELETE FROM user`)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindDatabase, appErr.Kind)
}
