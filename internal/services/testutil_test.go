package services

import (
	"testing"
	"time"

	"paper_shelf_go_backend/internal/database"
	"paper_shelf_go_backend/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB returns a migrated in-memory database private to the test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email}
	require.NoError(t, db.Create(user).Error)
	return user
}

func loraRecord() models.PaperRecord {
	return models.PaperRecord{
		ID:          "2106.09685v2",
		Title:       "LoRA: Low-Rank Adaptation of Large Language Models",
		Authors:     []string{"Edward J. Hu", "Yelong Shen"},
		Abstract:    "We propose Low-Rank Adaptation.",
		URL:         "http://arxiv.org/abs/2106.09685v2",
		PDFURL:      "http://arxiv.org/pdf/2106.09685v2",
		PublishedAt: time.Date(2021, 6, 17, 17, 37, 18, 0, time.UTC),
	}
}
