package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns a bare search record may refresh. Summary and institution are only
// ever written by MergeEnrichment.
var bibliographicColumns = []string{"title", "authors", "abstract", "url", "pdf_url", "published_at", "updated_at"}

type DefaultCatalogService struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewCatalogServiceDB(db *gorm.DB, logger zerolog.Logger) *DefaultCatalogService {
	return &DefaultCatalogService{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

func (s *DefaultCatalogService) UpsertPaper(ctx context.Context, record models.PaperRecord) (*models.Paper, error) {
	id := NormalizeArxivID(record.ID)
	if id == "" {
		return nil, fmt.Errorf("paper id is required: %w", apperrors.ErrInvalidInput)
	}
	authors := record.Authors
	if authors == nil {
		authors = []string{}
	}

	paper := models.Paper{
		ID:          id,
		Title:       strings.TrimSpace(record.Title),
		Authors:     authors,
		Abstract:    record.Abstract,
		URL:         record.URL,
		PDFURL:      record.PDFURL,
		PublishedAt: record.PublishedAt.UTC(),
	}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(bibliographicColumns),
		}).
		Create(&paper).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert paper %s: %w", id, err)
	}

	return s.GetPaper(ctx, id)
}

func (s *DefaultCatalogService) GetPaper(ctx context.Context, paperID string) (*models.Paper, error) {
	var paper models.Paper
	err := s.db.WithContext(ctx).
		Preload("Topics", orderTopicsByName).
		Where("id = ?", paperID).
		First(&paper).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("paper %s: %w", paperID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &paper, nil
}

// GetSavedPaper returns the paper only when userID has saved it. A nil paper
// with a nil error means the caller should fall back to a live lookup.
func (s *DefaultCatalogService) GetSavedPaper(ctx context.Context, userID uuid.UUID, paperID string) (*models.Paper, error) {
	var saved models.SavedPaper
	err := s.db.WithContext(ctx).
		Preload("Paper.Topics", orderTopicsByName).
		Where("user_id = ? AND paper_id = ?", userID, paperID).
		First(&saved).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &saved.Paper, nil
}

func (s *DefaultCatalogService) LinkUserToPaper(ctx context.Context, userID uuid.UUID, paperID string) (*models.SavedPaper, error) {
	db := s.db.WithContext(ctx)
	if err := s.ensurePaper(db, paperID); err != nil {
		return nil, err
	}

	link := models.SavedPaper{UserID: userID, PaperID: paperID, CreatedAt: time.Now().UTC()}
	err := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "paper_id"}},
			DoNothing: true,
		}).
		Create(&link).Error
	if err != nil {
		return nil, fmt.Errorf("failed to link paper %s: %w", paperID, err)
	}

	var saved models.SavedPaper
	err = db.Preload("Paper.Topics", orderTopicsByName).
		Where("user_id = ? AND paper_id = ?", userID, paperID).
		First(&saved).Error
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *DefaultCatalogService) UnlinkUserFromPaper(ctx context.Context, userID uuid.UUID, paperID string) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND paper_id = ?", userID, paperID).
		Delete(&models.SavedPaper{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("saved paper %s: %w", paperID, apperrors.ErrNotFound)
	}
	return nil
}

// MergeEnrichment overwrites the AI-derived fields and attaches topics. Topics
// already on the paper stay attached.
func (s *DefaultCatalogService) MergeEnrichment(ctx context.Context, paperID string, enrichment models.Enrichment) (*models.Paper, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Paper{}).
			Where("id = ?", paperID).
			Updates(map[string]interface{}{
				"summary":     nullableString(enrichment.Summary),
				"institution": nullableString(enrichment.Institution),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("paper %s: %w", paperID, apperrors.ErrNotFound)
		}

		for _, name := range enrichment.Topics {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			topic, err := getOrCreateTopic(tx, name)
			if err != nil {
				return err
			}
			if err := attachEdge(tx, paperID, topic.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("paper_id", paperID).Int("topics", len(enrichment.Topics)).Msg("Merged enrichment")
	return s.GetPaper(ctx, paperID)
}

func (s *DefaultCatalogService) AttachTopic(ctx context.Context, paperID, topicName string) (*models.Topic, error) {
	name := strings.TrimSpace(topicName)
	if name == "" {
		return nil, fmt.Errorf("topic name is required: %w", apperrors.ErrInvalidInput)
	}

	var topic *models.Topic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.ensurePaper(tx, paperID); err != nil {
			return err
		}
		var err error
		topic, err = getOrCreateTopic(tx, name)
		if err != nil {
			return err
		}
		return attachEdge(tx, paperID, topic.ID)
	})
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// DetachTopic removes the edge only. Detaching an edge that does not exist is
// a no-op.
func (s *DefaultCatalogService) DetachTopic(ctx context.Context, paperID string, topicID uint) error {
	db := s.db.WithContext(ctx)
	if err := s.ensurePaper(db, paperID); err != nil {
		return err
	}
	return db.Where("paper_id = ? AND topic_id = ?", paperID, topicID).
		Delete(&models.PaperTopic{}).Error
}

func (s *DefaultCatalogService) ListSavedForUser(ctx context.Context, userID uuid.UUID) ([]models.SavedPaper, error) {
	var saved []models.SavedPaper
	err := s.db.WithContext(ctx).
		Preload("Paper.Topics", orderTopicsByName).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&saved).Error
	if err != nil {
		return nil, err
	}
	for i := range saved {
		sortTopics(saved[i].Paper.Topics)
	}
	return saved, nil
}

func (s *DefaultCatalogService) ensurePaper(db *gorm.DB, paperID string) error {
	var count int64
	if err := db.Model(&models.Paper{}).Where("id = ?", paperID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("paper %s: %w", paperID, apperrors.ErrNotFound)
	}
	return nil
}

// getOrCreateTopic relies on the unique name index so concurrent callers
// converge on one row.
func getOrCreateTopic(tx *gorm.DB, name string) (*models.Topic, error) {
	candidate := models.Topic{Name: name}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&candidate).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create topic %q: %w", name, err)
	}

	var topic models.Topic
	if err := tx.Where("name = ?", name).First(&topic).Error; err != nil {
		return nil, fmt.Errorf("failed to load topic %q: %w", name, err)
	}
	return &topic, nil
}

func attachEdge(tx *gorm.DB, paperID string, topicID uint) error {
	edge := models.PaperTopic{PaperID: paperID, TopicID: topicID, CreatedAt: time.Now().UTC()}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error
	if err != nil {
		return fmt.Errorf("failed to attach topic %d to paper %s: %w", topicID, paperID, err)
	}
	return nil
}

func orderTopicsByName(db *gorm.DB) *gorm.DB {
	return db.Order("topics.name ASC")
}

func sortTopics(topics []models.Topic) {
	sort.Slice(topics, func(i, j int) bool { return topics[i].Name < topics[j].Name })
}

func nullableString(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}
