package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/models"
)

func setupMockRevisionDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *RevisionRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewRevisionRepository(db, logger)

	return db, mock, repo
}

// ============================================
// 修订日志查询测试
// ============================================

func TestListForEntity_Success(t *testing.T) {
	db, mock, repo := setupMockRevisionDB(t)
	defer db.Close()

	eventID := uuid.New().String()
	userID := uuid.New().String()
	revisionAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "entity_kind", "entity_id", "sequence", "action", "revision_at", "data",
		"id", "username", "first_name", "last_name",
	}).AddRow(
		uuid.New().String(), "event", eventID, int64(1), "added", revisionAt, `{"state": "new"}`,
		nil, nil, nil, nil,
	).AddRow(
		uuid.New().String(), "event", eventID, int64(2), "updated", revisionAt.Add(time.Hour), `{"state": "resolved"}`,
		userID, "asha", "Asha", "Odede",
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("event", eventID).
		WillReturnRows(rows)

	revisions, err := repo.ListForEntity(context.Background(), "event", eventID)

	require.NoError(t, err)
	require.Len(t, revisions, 2)

	// user_id 为空的修订来自非交互来源
	assert.Equal(t, int64(1), revisions[0].Sequence)
	assert.Equal(t, models.ActionAdded, revisions[0].Action)
	assert.Equal(t, "new", revisions[0].Data["state"])
	assert.Nil(t, revisions[0].User)

	assert.Equal(t, int64(2), revisions[1].Sequence)
	assert.Equal(t, models.ActionUpdated, revisions[1].Action)
	require.NotNil(t, revisions[1].User)
	assert.Equal(t, userID, revisions[1].User.ID)
	assert.Equal(t, "Asha Odede", revisions[1].User.Display())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForEntity_NullDataBecomesEmptyMap(t *testing.T) {
	db, mock, repo := setupMockRevisionDB(t)
	defer db.Close()

	eventID := uuid.New().String()

	rows := sqlmock.NewRows([]string{
		"id", "entity_kind", "entity_id", "sequence", "action", "revision_at", "data",
		"id", "username", "first_name", "last_name",
	}).AddRow(
		uuid.New().String(), "event", eventID, int64(1), "added", time.Now(), nil,
		nil, nil, nil, nil,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("event", eventID).
		WillReturnRows(rows)

	revisions, err := repo.ListForEntity(context.Background(), "event", eventID)

	require.NoError(t, err)
	require.Len(t, revisions, 1)
	assert.NotNil(t, revisions[0].Data)
	assert.Empty(t, revisions[0].Data)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForEntity_NoRevisions(t *testing.T) {
	db, mock, repo := setupMockRevisionDB(t)
	defer db.Close()

	noteID := uuid.New().String()

	rows := sqlmock.NewRows([]string{
		"id", "entity_kind", "entity_id", "sequence", "action", "revision_at", "data",
		"id", "username", "first_name", "last_name",
	})

	mock.ExpectQuery(`SELECT`).
		WithArgs("note", noteID).
		WillReturnRows(rows)

	revisions, err := repo.ListForEntity(context.Background(), "note", noteID)

	require.NoError(t, err)
	assert.Empty(t, revisions)

	require.NoError(t, mock.ExpectationsWereMet())
}
