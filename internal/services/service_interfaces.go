package services

import (
	"context"

	"paper_shelf_go_backend/internal/models"
	"paper_shelf_go_backend/internal/utils/taskrunner"

	"github.com/google/uuid"
)

type PaperSearcher interface {
	Search(ctx context.Context, params SearchParams) ([]models.PaperRecord, error)
	Latest(ctx context.Context, category string) ([]models.PaperRecord, error)
	FetchByID(ctx context.Context, id string) (*models.PaperRecord, error)
}

type ContentGenerator interface {
	GenerateFromPDF(ctx context.Context, prompt string, pdf []byte) (string, error)
}

type PaperAnalyzer interface {
	Analyze(ctx context.Context, pdf []byte) (*models.Enrichment, error)
}

type PDFDownloader interface {
	Fetch(ctx context.Context, pdfURL string) ([]byte, error)
}

type TaskSubmitter interface {
	Submit(name string, fn taskrunner.Task) bool
}

type CatalogServiceDB interface {
	UpsertPaper(ctx context.Context, record models.PaperRecord) (*models.Paper, error)
	GetPaper(ctx context.Context, paperID string) (*models.Paper, error)
	GetSavedPaper(ctx context.Context, userID uuid.UUID, paperID string) (*models.Paper, error)
	LinkUserToPaper(ctx context.Context, userID uuid.UUID, paperID string) (*models.SavedPaper, error)
	UnlinkUserFromPaper(ctx context.Context, userID uuid.UUID, paperID string) error
	MergeEnrichment(ctx context.Context, paperID string, enrichment models.Enrichment) (*models.Paper, error)
	AttachTopic(ctx context.Context, paperID, topicName string) (*models.Topic, error)
	DetachTopic(ctx context.Context, paperID string, topicID uint) error
	ListSavedForUser(ctx context.Context, userID uuid.UUID) ([]models.SavedPaper, error)
}

type UserManager interface {
	SyncUser(ctx context.Context, email, name string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
