package services

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertPaper_NormalizesAndRefreshes(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()

	rec := loraRecord()
	rec.ID = "https://arxiv.org/abs/2106.09685v2"
	first, err := catalog.UpsertPaper(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "2106.09685v2", first.ID)
	assert.Equal(t, []string{"Edward J. Hu", "Yelong Shen"}, first.Authors)
	assert.Nil(t, first.Summary)

	rec.ID = "arXiv:2106.09685v2"
	rec.Title = "LoRA (revised)"
	second, err := catalog.UpsertPaper(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "LoRA (revised)", second.Title)

	var count int64
	require.NoError(t, db.Model(&models.Paper{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertPaper_IsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()

	first, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)
	second, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.Authors, second.Authors)
	assert.Equal(t, first.Abstract, second.Abstract)
	assert.Equal(t, first.PDFURL, second.PDFURL)
	assert.True(t, first.PublishedAt.Equal(second.PublishedAt))
}

func TestUpsertPaper_PreservesEnrichment(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()

	_, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)
	_, err = catalog.MergeEnrichment(ctx, "2106.09685v2", models.Enrichment{
		Summary: "S", Institution: "Microsoft", Topics: []string{"Large Language Models"},
	})
	require.NoError(t, err)

	paper, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)
	require.NotNil(t, paper.Summary)
	require.NotNil(t, paper.Institution)
	assert.Equal(t, "S", *paper.Summary)
	assert.Equal(t, "Microsoft", *paper.Institution)
	require.Len(t, paper.Topics, 1)
}

func TestUpsertPaper_RequiresID(t *testing.T) {
	catalog := NewCatalogServiceDB(setupTestDB(t), zerolog.Nop())
	_, err := catalog.UpsertPaper(context.Background(), models.PaperRecord{Title: "untitled"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLinkUserToPaper_IsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()
	user := createTestUser(t, db, "ada@example.com")

	_, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)

	first, err := catalog.LinkUserToPaper(ctx, user.ID, "2106.09685v2")
	require.NoError(t, err)
	second, err := catalog.LinkUserToPaper(ctx, user.ID, "2106.09685v2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "LoRA: Low-Rank Adaptation of Large Language Models", second.Paper.Title)

	var count int64
	require.NoError(t, db.Model(&models.SavedPaper{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLinkUserToPaper_UnknownPaper(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	user := createTestUser(t, db, "ada@example.com")

	_, err := catalog.LinkUserToPaper(context.Background(), user.ID, "9999.99999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUnlinkUserFromPaper_PreservesCatalog(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()
	ada := createTestUser(t, db, "ada@example.com")
	alan := createTestUser(t, db, "alan@example.com")

	_, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)
	_, err = catalog.MergeEnrichment(ctx, "2106.09685v2", models.Enrichment{Summary: "S", Topics: []string{"Agent"}})
	require.NoError(t, err)
	_, err = catalog.LinkUserToPaper(ctx, ada.ID, "2106.09685v2")
	require.NoError(t, err)
	_, err = catalog.LinkUserToPaper(ctx, alan.ID, "2106.09685v2")
	require.NoError(t, err)

	require.NoError(t, catalog.UnlinkUserFromPaper(ctx, ada.ID, "2106.09685v2"))

	adaList, err := catalog.ListSavedForUser(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, adaList)

	alanList, err := catalog.ListSavedForUser(ctx, alan.ID)
	require.NoError(t, err)
	require.Len(t, alanList, 1)
	assert.Len(t, alanList[0].Paper.Topics, 1)

	paper, err := catalog.GetPaper(ctx, "2106.09685v2")
	require.NoError(t, err)
	assert.Equal(t, "S", *paper.Summary)

	err = catalog.UnlinkUserFromPaper(ctx, ada.ID, "2106.09685v2")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMergeEnrichment_TopicDedup(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()

	rec := loraRecord()
	_, err := catalog.UpsertPaper(ctx, rec)
	require.NoError(t, err)
	rec.ID = "1706.03762v7"
	rec.Title = "Attention Is All You Need"
	_, err = catalog.UpsertPaper(ctx, rec)
	require.NoError(t, err)

	_, err = catalog.MergeEnrichment(ctx, "2106.09685v2", models.Enrichment{Summary: "A", Topics: []string{"Agent"}})
	require.NoError(t, err)
	_, err = catalog.MergeEnrichment(ctx, "1706.03762v7", models.Enrichment{Summary: "B", Topics: []string{"Agent", "Agent"}})
	require.NoError(t, err)

	var topics []models.Topic
	require.NoError(t, db.Where("name = ?", "Agent").Find(&topics).Error)
	require.Len(t, topics, 1)

	var edges int64
	require.NoError(t, db.Model(&models.PaperTopic{}).Where("topic_id = ?", topics[0].ID).Count(&edges).Error)
	assert.Equal(t, int64(2), edges)
}

func TestMergeEnrichment_OverwritesAIFields(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()
	_, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)

	_, err = catalog.MergeEnrichment(ctx, "2106.09685v2", models.Enrichment{Summary: "old", Institution: "Microsoft"})
	require.NoError(t, err)
	paper, err := catalog.MergeEnrichment(ctx, "2106.09685v2", models.Enrichment{Summary: "new", Institution: ""})
	require.NoError(t, err)

	assert.Equal(t, "new", *paper.Summary)
	assert.Nil(t, paper.Institution)
	assert.Equal(t, "LoRA: Low-Rank Adaptation of Large Language Models", paper.Title)
}

func TestMergeEnrichment_UnknownPaper(t *testing.T) {
	catalog := NewCatalogServiceDB(setupTestDB(t), zerolog.Nop())
	_, err := catalog.MergeEnrichment(context.Background(), "0000.00000", models.Enrichment{Summary: "S"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAttachAndDetachTopic(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()
	_, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)

	topic, err := catalog.AttachTopic(ctx, "2106.09685v2", "  Recommendation System ")
	require.NoError(t, err)
	assert.Equal(t, "Recommendation System", topic.Name)

	again, err := catalog.AttachTopic(ctx, "2106.09685v2", "Recommendation System")
	require.NoError(t, err)
	assert.Equal(t, topic.ID, again.ID)

	paper, err := catalog.GetPaper(ctx, "2106.09685v2")
	require.NoError(t, err)
	require.Len(t, paper.Topics, 1)

	require.NoError(t, catalog.DetachTopic(ctx, "2106.09685v2", topic.ID))
	require.NoError(t, catalog.DetachTopic(ctx, "2106.09685v2", topic.ID))

	paper, err = catalog.GetPaper(ctx, "2106.09685v2")
	require.NoError(t, err)
	assert.Empty(t, paper.Topics)

	var remaining int64
	require.NoError(t, db.Model(&models.Topic{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)

	_, err = catalog.AttachTopic(ctx, "2106.09685v2", "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = catalog.AttachTopic(ctx, "0000.00000", "Agent")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, catalog.DetachTopic(ctx, "0000.00000", topic.ID), apperrors.ErrNotFound)
}

func TestAttachTopic_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()
	_, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := catalog.AttachTopic(ctx, "2106.09685v2", "Agent")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	var topics, edges int64
	require.NoError(t, db.Model(&models.Topic{}).Count(&topics).Error)
	require.NoError(t, db.Model(&models.PaperTopic{}).Count(&edges).Error)
	assert.Equal(t, int64(1), topics)
	assert.Equal(t, int64(1), edges)
}

func TestListSavedForUser_MostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()
	user := createTestUser(t, db, "ada@example.com")

	ids := []string{"2106.09685v2", "1706.03762v7", "hep-th/9901001v1"}
	for _, id := range ids {
		rec := loraRecord()
		rec.ID = id
		_, err := catalog.UpsertPaper(ctx, rec)
		require.NoError(t, err)
		_, err = catalog.LinkUserToPaper(ctx, user.ID, id)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := catalog.MergeEnrichment(ctx, "1706.03762v7", models.Enrichment{
		Summary: "S", Topics: []string{"Model Architecture", "Agent"},
	})
	require.NoError(t, err)

	saved, err := catalog.ListSavedForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, "hep-th/9901001v1", saved[0].PaperID)
	assert.Equal(t, "1706.03762v7", saved[1].PaperID)
	assert.Equal(t, "2106.09685v2", saved[2].PaperID)

	require.Len(t, saved[1].Paper.Topics, 2)
	assert.Equal(t, "Agent", saved[1].Paper.Topics[0].Name)
	assert.Equal(t, "Model Architecture", saved[1].Paper.Topics[1].Name)

	other, err := catalog.ListSavedForUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGetSavedPaper(t *testing.T) {
	db := setupTestDB(t)
	catalog := NewCatalogServiceDB(db, zerolog.Nop())
	ctx := context.Background()
	user := createTestUser(t, db, "ada@example.com")

	_, err := catalog.UpsertPaper(ctx, loraRecord())
	require.NoError(t, err)

	paper, err := catalog.GetSavedPaper(ctx, user.ID, "2106.09685v2")
	require.NoError(t, err)
	assert.Nil(t, paper)

	_, err = catalog.LinkUserToPaper(ctx, user.ID, "2106.09685v2")
	require.NoError(t, err)
	paper, err = catalog.GetSavedPaper(ctx, user.ID, "2106.09685v2")
	require.NoError(t, err)
	require.NotNil(t, paper)
	assert.Equal(t, "2106.09685v2", paper.ID)

	_, err = catalog.GetPaper(ctx, "0000.00000")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
