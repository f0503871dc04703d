package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/nickng/bibtex"
	"github.com/rs/zerolog"
)

// PaperLookup is a single paper as seen by one user. Saved is false when the
// paper came from a live arXiv lookup instead of the user's library.
type PaperLookup struct {
	Paper *models.Paper `json:"paper"`
	Saved bool          `json:"saved"`
}

// LibraryService is the read/write surface the HTTP layer talks to.
type LibraryService struct {
	searcher   PaperSearcher
	catalog    CatalogServiceDB
	enrichment *EnrichmentService
	logger     zerolog.Logger
}

func NewLibraryService(searcher PaperSearcher, catalog CatalogServiceDB, enrichment *EnrichmentService, logger zerolog.Logger) *LibraryService {
	return &LibraryService{
		searcher:   searcher,
		catalog:    catalog,
		enrichment: enrichment,
		logger:     logger.With().Str("component", "library").Logger(),
	}
}

// Search never fails because of arXiv: provider errors degrade to an empty
// result and are only logged.
func (s *LibraryService) Search(ctx context.Context, params SearchParams) ([]models.PaperRecord, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("query is required: %w", apperrors.ErrInvalidInput)
	}
	records, err := s.searcher.Search(ctx, params)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", params.Query).Msg("Search failed, returning no results")
		return []models.PaperRecord{}, nil
	}
	return records, nil
}

func (s *LibraryService) Latest(ctx context.Context, category string) ([]models.PaperRecord, error) {
	if strings.TrimSpace(category) == "" {
		return nil, fmt.Errorf("category is required: %w", apperrors.ErrInvalidInput)
	}
	records, err := s.searcher.Latest(ctx, category)
	if err != nil {
		s.logger.Warn().Err(err).Str("category", category).Msg("Latest failed, returning no results")
		return []models.PaperRecord{}, nil
	}
	return records, nil
}

func (s *LibraryService) Save(ctx context.Context, userID uuid.UUID, record models.PaperRecord) (*models.SavedPaper, error) {
	return s.enrichment.Save(ctx, userID, record)
}

func (s *LibraryService) Remove(ctx context.Context, userID uuid.UUID, paperID string) error {
	return s.catalog.UnlinkUserFromPaper(ctx, userID, NormalizeArxivID(paperID))
}

func (s *LibraryService) Regenerate(ctx context.Context, paperID string) (*models.Paper, error) {
	return s.enrichment.Regenerate(ctx, paperID)
}

func (s *LibraryService) ListSaved(ctx context.Context, userID uuid.UUID) ([]models.SavedPaper, error) {
	return s.catalog.ListSavedForUser(ctx, userID)
}

// AddTopic tags a paper the user has saved.
func (s *LibraryService) AddTopic(ctx context.Context, userID uuid.UUID, paperID, name string) (*models.Topic, error) {
	paperID = NormalizeArxivID(paperID)
	if err := s.requireSaved(ctx, userID, paperID); err != nil {
		return nil, err
	}
	return s.catalog.AttachTopic(ctx, paperID, name)
}

func (s *LibraryService) RemoveTopic(ctx context.Context, userID uuid.UUID, paperID string, topicID uint) error {
	paperID = NormalizeArxivID(paperID)
	if err := s.requireSaved(ctx, userID, paperID); err != nil {
		return err
	}
	return s.catalog.DetachTopic(ctx, paperID, topicID)
}

// GetPaper prefers the user's saved, enriched copy and falls back to arXiv.
func (s *LibraryService) GetPaper(ctx context.Context, userID uuid.UUID, paperID string) (*PaperLookup, error) {
	paperID = NormalizeArxivID(paperID)
	if paperID == "" {
		return nil, fmt.Errorf("paper id is required: %w", apperrors.ErrInvalidInput)
	}

	saved, err := s.catalog.GetSavedPaper(ctx, userID, paperID)
	if err != nil {
		return nil, err
	}
	if saved != nil {
		return &PaperLookup{Paper: saved, Saved: true}, nil
	}

	record, err := s.searcher.FetchByID(ctx, paperID)
	if err != nil {
		return nil, err
	}
	return &PaperLookup{Paper: recordToPaper(record), Saved: false}, nil
}

// ExportBibTeX renders the user's library as @misc entries, newest first.
func (s *LibraryService) ExportBibTeX(ctx context.Context, userID uuid.UUID) (string, error) {
	saved, err := s.catalog.ListSavedForUser(ctx, userID)
	if err != nil {
		return "", err
	}

	bib := bibtex.NewBibTex()
	for i := range saved {
		bib.AddEntry(paperToBibEntry(&saved[i].Paper))
	}
	return bib.PrettyString(), nil
}

func (s *LibraryService) requireSaved(ctx context.Context, userID uuid.UUID, paperID string) error {
	paper, err := s.catalog.GetSavedPaper(ctx, userID, paperID)
	if err != nil {
		return err
	}
	if paper == nil {
		return fmt.Errorf("saved paper %s: %w", paperID, apperrors.ErrNotFound)
	}
	return nil
}

var citeKeyUnsafe = regexp.MustCompile(`[^A-Za-z0-9]+`)

func paperToBibEntry(p *models.Paper) *bibtex.BibEntry {
	entry := bibtex.NewBibEntry("misc", "arXiv"+citeKeyUnsafe.ReplaceAllString(p.ID, "_"))
	entry.AddField("title", bibtex.NewBibConst(p.Title))
	if len(p.Authors) > 0 {
		entry.AddField("author", bibtex.NewBibConst(strings.Join(p.Authors, " and ")))
	}
	if !p.PublishedAt.IsZero() {
		entry.AddField("year", bibtex.NewBibConst(strconv.Itoa(p.PublishedAt.Year())))
	}
	entry.AddField("eprint", bibtex.NewBibConst(p.ID))
	entry.AddField("archivePrefix", bibtex.NewBibConst("arXiv"))
	if p.URL != "" {
		entry.AddField("url", bibtex.NewBibConst(p.URL))
	}
	if len(p.Topics) > 0 {
		names := make([]string, len(p.Topics))
		for i, t := range p.Topics {
			names[i] = t.Name
		}
		entry.AddField("keywords", bibtex.NewBibConst(strings.Join(names, ", ")))
	}
	return entry
}

func recordToPaper(r *models.PaperRecord) *models.Paper {
	return &models.Paper{
		ID:          NormalizeArxivID(r.ID),
		Title:       r.Title,
		Authors:     r.Authors,
		Abstract:    r.Abstract,
		URL:         r.URL,
		PDFURL:      r.PDFURL,
		PublishedAt: r.PublishedAt,
		Topics:      []models.Topic{},
	}
}
