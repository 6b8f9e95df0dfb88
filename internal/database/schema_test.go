package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 12)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, stmts[2], "CREATE TABLE IF NOT EXISTS news")
	assert.Contains(t, stmts[3], "CREATE TABLE IF NOT EXISTS announcements")
	assert.Contains(t, stmts[4], "CREATE TABLE IF NOT EXISTS events")
	assert.Contains(t, stmts[7], "UNIQUE (student_id, alumni_id)")
	assert.Contains(t, stmts[8], "CREATE TABLE IF NOT EXISTS jobs")
	assert.Contains(t, stmts[9], "CREATE TABLE IF NOT EXISTS alumni_profiles")
	assert.Contains(t, stmts[10], "LEAST(requester_id, recipient_id), GREATEST(requester_id, recipient_id)")
	assert.Contains(t, stmts[11], "CREATE TABLE IF NOT EXISTS emergency_contacts")
}

func TestMigrate(t *testing.T) {
	t.Run("applies every statement", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.MatchExpectationsInOrder(true)
		for range Statements() {
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		}

		assert.NoError(t, Migrate(context.Background(), db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at first failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("permission denied"))

		err = Migrate(context.Background(), db)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
