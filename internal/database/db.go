package database

import (
	"fmt"

	"paper_shelf_go_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, sslMode)
}

// InitDB opens the postgres connection and migrates the schema.
func InitDB(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate registers the paper/topic join model and auto-migrates every table.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Paper{}, "Topics", &models.PaperTopic{}); err != nil {
		return fmt.Errorf("failed to set up paper topics join table: %w", err)
	}

	err := db.AutoMigrate(&models.User{}, &models.Paper{}, &models.Topic{}, &models.PaperTopic{}, &models.SavedPaper{})
	if err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}
