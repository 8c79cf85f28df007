package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardExecutorNilDB(t *testing.T) {
	exec := NewStandardExecutor(nil)
	ctx := context.Background()

	_, err := exec.QueryContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	_, err = exec.ExecContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	_, err = exec.BeginTx(ctx, nil)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestStandardExecutorQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT CLIENT_ID FROM clients").
		WillReturnRows(sqlmock.NewRows([]string{"CLIENT_ID"}).AddRow(1).AddRow(2))

	rows, err := NewStandardExecutor(db).QueryContext(context.Background(), "SELECT CLIENT_ID FROM clients")
	require.NoError(t, err)
	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"CLIENT_ID"}, cols)

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []int64{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxExecutorSerializesStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))
	mock.ExpectExec("UPDATE clients").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := NewStandardExecutor(db).BeginTx(ctx, nil)
	require.NoError(t, err)

	rows, err := tx.QueryContext(ctx, "SELECT 1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := tx.ExecContext(ctx, "UPDATE clients SET NOTES = ''")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("exec ran while rows were still open")
	case <-time.After(50 * time.Millisecond):
	}

	for rows.Next() {
	}
	require.NoError(t, rows.Close())
	// A second close must not release the lock twice.
	require.NoError(t, rows.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("exec did not run after rows were closed")
	}

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxExecutorQueryErrorReleasesLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT bad").WillReturnError(errors.New("syntax"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := NewStandardExecutor(db).BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = tx.QueryContext(ctx, "SELECT bad")
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
