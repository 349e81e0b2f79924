package emailoutbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/utkarshsingh/money-manager-backend/pkg/db/models"
	"github.com/utkarshsingh/money-manager-backend/pkg/enums"
)

func setupEmailOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS email_outbox (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  recipient TEXT NOT NULL,
  subject TEXT NOT NULL,
  body TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  created_at DATETIME,
  sent_at DATETIME,
  last_error TEXT
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM email_outbox").Error)
	return db
}

func insertEmailRow(t *testing.T, repo Repository, status enums.EmailStatus, createdAt time.Time) models.EmailOutbox {
	t.Helper()
	row := models.EmailOutbox{
		ID:        uuid.New(),
		EventID:   uuid.New(),
		Recipient: "jordan@example.com",
		Subject:   "subject",
		Body:      "body",
		Status:    status,
		CreatedAt: createdAt,
	}
	require.NoError(t, repo.Insert(context.Background(), &row))
	return row
}

func TestFetchSweepableIncludesFailedRows(t *testing.T) {
	db := setupEmailOutboxTestDB(t)
	repo := NewRepository(db)

	base := time.Now().UTC().Add(-time.Hour)
	pending := insertEmailRow(t, repo, enums.EmailStatusPending, base)
	failed := insertEmailRow(t, repo, enums.EmailStatusFailed, base.Add(time.Minute))
	insertEmailRow(t, repo, enums.EmailStatusSent, base.Add(2*time.Minute))

	rows, err := repo.FetchSweepable(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, pending.ID, rows[0].ID, "oldest row first")
	assert.Equal(t, failed.ID, rows[1].ID)
}

func TestFetchSweepableHonorsLimit(t *testing.T) {
	db := setupEmailOutboxTestDB(t)
	repo := NewRepository(db)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		insertEmailRow(t, repo, enums.EmailStatusPending, base.Add(time.Duration(i)*time.Second))
	}

	rows, err := repo.FetchSweepable(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestMarkSent(t *testing.T) {
	db := setupEmailOutboxTestDB(t)
	repo := NewRepository(db)

	row := insertEmailRow(t, repo, enums.EmailStatusPending, time.Now().UTC())
	require.NoError(t, repo.MarkSent(context.Background(), row.ID))

	stored, err := repo.FindByID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, enums.EmailStatusSent, stored.Status)
	assert.NotNil(t, stored.SentAt)
}

func TestMarkFailedStaysSweepable(t *testing.T) {
	db := setupEmailOutboxTestDB(t)
	repo := NewRepository(db)

	row := insertEmailRow(t, repo, enums.EmailStatusPending, time.Now().UTC())
	require.NoError(t, repo.MarkFailed(context.Background(), row.ID, errors.New("smtp 451")))

	stored, err := repo.FindByID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, enums.EmailStatusFailed, stored.Status)
	require.NotNil(t, stored.LastError)
	assert.Contains(t, *stored.LastError, "smtp 451")

	rows, err := repo.FetchSweepable(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row.ID, rows[0].ID)
}

func TestFindByIDMissingRow(t *testing.T) {
	db := setupEmailOutboxTestDB(t)
	repo := NewRepository(db)

	stored, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, stored)
}
