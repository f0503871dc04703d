package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// SavedPaper links a user to a catalog paper. A user saves a paper at most once.
type SavedPaper struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_saved_user_paper" json:"user_id"`
	PaperID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_saved_user_paper" json:"paper_id"`
	Paper     Paper     `gorm:"foreignKey:PaperID" json:"paper"`
	CreatedAt time.Time `gorm:"index" json:"saved_at"`
}
