package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS processed_messages (
  event_id TEXT PRIMARY KEY,
  processed_at DATETIME NOT NULL
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM processed_messages").Error)
	return db
}

func TestInsertClaimsEventOnce(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	eventID := uuid.New()
	require.NoError(t, repo.Insert(context.Background(), eventID))

	err := repo.Insert(context.Background(), eventID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestInsertDistinctEvents(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Insert(context.Background(), uuid.New()))
	require.NoError(t, repo.Insert(context.Background(), uuid.New()))
}

func TestExists(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	eventID := uuid.New()
	seen, err := repo.Exists(context.Background(), eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, repo.Insert(context.Background(), eventID))

	seen, err = repo.Exists(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestWithTxScopesToTransaction(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)

	eventID := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.WithTx(tx).Insert(context.Background(), eventID)
	})
	require.NoError(t, err)

	seen, err := repo.Exists(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, seen)
}
