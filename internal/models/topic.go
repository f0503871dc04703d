package models

import "time"

type Topic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

// PaperTopic is the join row behind Paper.Topics. The composite primary key
// keeps an edge unique.
type PaperTopic struct {
	PaperID   string `gorm:"primaryKey;type:varchar(64)"`
	TopicID   uint   `gorm:"primaryKey"`
	CreatedAt time.Time
}
