package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSQLiteDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.close() })
	return db
}

func TestSQLiteUserLifecycle(t *testing.T) {
	db := newTestSQLiteDB(t)

	hash := "$2a$10$hash"
	u, err := db.CreateUser("a@example.com", "local", &hash)
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	got, err := db.GetUserByEmailProvider("a@example.com", "local")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.PasswordHash)
	require.Equal(t, hash, *got.PasswordHash)
	require.True(t, got.Active)

	// unknown lookups are nil, not errors
	none, err := db.GetUserByEmailProvider("a@example.com", "google")
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = db.CreateUser("a@example.com", "local", nil)
	require.ErrorIs(t, err, ErrUserExists)

	// same email under a different provider is fine
	g, err := db.CreateUser("a@example.com", "google", nil)
	require.NoError(t, err)
	require.Nil(t, g.PasswordHash)
}

func TestSQLiteCreateUserNonConstraintError(t *testing.T) {
	db := newTestSQLiteDB(t)
	require.NoError(t, db.close())

	// only the unique-constraint violation maps to ErrUserExists
	_, err := db.CreateUser("b@example.com", "local", nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrUserExists)
}

func TestSQLiteInteractions(t *testing.T) {
	db := newTestSQLiteDB(t)

	u, err := db.CreateUser("b@example.com", "local", nil)
	require.NoError(t, err)

	require.NoError(t, db.CreateInteraction(u.ID, "model-test", "user", "prompt"))
	require.NoError(t, db.CreateInteraction(u.ID, "model-test", "assistant", "reply"))

	rows, err := db.ListInteractionsByUser(u.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "user", rows[0].Role)
	require.Equal(t, "assistant", rows[1].Role)

	other, err := db.ListInteractionsByUser("nobody")
	require.NoError(t, err)
	require.Empty(t, other)
}
