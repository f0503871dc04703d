package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// SyncUser creates the user on first sight and refreshes the display name
// afterwards. The unique email index makes concurrent first logins safe.
func (s *UserService) SyncUser(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email claim is required: %w", apperrors.ErrUnauthorized)
	}

	user := models.User{Email: email, Name: strings.TrimSpace(name)}
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}
	if user.Name != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}
	}

	db := s.db.WithContext(ctx)
	if err := db.Clauses(onConflict).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to sync user: %w", err)
	}
	return s.GetUserByEmail(ctx, email)
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", email, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
