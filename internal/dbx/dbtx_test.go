package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/xxiimcha/lk-web/internal/common"
)

// openSQLite returns a private in-memory database with one table.
func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE requests (id INTEGER PRIMARY KEY, status TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func statuses(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT status FROM requests ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())
	return out
}

func insert(status string) func(ctx context.Context, tx DBTX) error {
	return func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO requests(status) VALUES (?)`, status)
		return err
	}
}

func TestWithTx_Commit(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, WithTx(ctx, db, nil, insert("pending")))
	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		if err := insert("approved")(ctx, tx); err != nil {
			return err
		}
		return insert("released")(ctx, tx)
	}))

	assert.Equal(t, []string{"pending", "approved", "released"}, statuses(t, db))
}

func TestWithTx_FnErrorRollsBackAndIsReturnedUnchanged(t *testing.T) {
	db := openSQLite(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insert("pending")(ctx, tx))
		return boom
	})
	assert.Same(t, boom, err)
	assert.Empty(t, statuses(t, db))
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openSQLite(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insert("rejected")(ctx, tx))
			panic("kaput")
		})
	})
	assert.Empty(t, statuses(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	called := false
	err = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, common.ErrorStoreUnavailable)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(connReset{})

	err = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return nil })
	require.ErrorContains(t, err, "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_ReadOnlySnapshotOptions(t *testing.T) {
	assert.True(t, Snapshot.ReadOnly)
	assert.Equal(t, sql.LevelRepeatableRead, Snapshot.Isolation)
}

type connReset struct{}

func (connReset) Error() string { return "connection reset" }
