package services

import (
	"context"
	"testing"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncUser_CreatesOnce(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserService(db)
	ctx := context.Background()

	first, err := users.SyncUser(ctx, "Ada@Example.com", "Ada")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, "ada@example.com", first.Email)

	second, err := users.SyncUser(ctx, "ada@example.com", "Ada Lovelace")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Ada Lovelace", second.Name)

	third, err := users.SyncUser(ctx, "ada@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", third.Name)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSyncUser_RequiresEmail(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	_, err := users.SyncUser(context.Background(), "  ", "nobody")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	users := NewUserService(setupTestDB(t))
	_, err := users.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
