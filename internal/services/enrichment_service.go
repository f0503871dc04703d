package services

import (
	"context"
	"fmt"
	"time"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"
	"paper_shelf_go_backend/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	triggerSave       = "save"
	triggerRegenerate = "regenerate"
)

// EnrichmentService saves papers and runs fetch, analyze and merge for them,
// either detached after a save or inline on regenerate.
type EnrichmentService struct {
	catalog  CatalogServiceDB
	fetcher  PDFDownloader
	analyzer PaperAnalyzer
	tasks    TaskSubmitter
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewEnrichmentService(
	catalog CatalogServiceDB,
	fetcher PDFDownloader,
	analyzer PaperAnalyzer,
	tasks TaskSubmitter,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *EnrichmentService {
	return &EnrichmentService{
		catalog:  catalog,
		fetcher:  fetcher,
		analyzer: analyzer,
		tasks:    tasks,
		metrics:  metrics,
		logger:   logger.With().Str("component", "enrichment").Logger(),
	}
}

// Save upserts the paper, links it to the user and returns. Enrichment is
// queued and never reports back to the caller.
func (s *EnrichmentService) Save(ctx context.Context, userID uuid.UUID, record models.PaperRecord) (*models.SavedPaper, error) {
	paper, err := s.catalog.UpsertPaper(ctx, record)
	if err != nil {
		return nil, err
	}
	saved, err := s.catalog.LinkUserToPaper(ctx, userID, paper.ID)
	if err != nil {
		return nil, err
	}

	if paper.HasPDF() {
		paperID, pdfURL := paper.ID, paper.PDFURL
		queued := s.tasks.Submit("enrich:"+paperID, func(ctx context.Context) error {
			if _, err := s.enrich(ctx, paperID, pdfURL, triggerSave); err != nil {
				s.logger.Error().Err(err).Str("paper_id", paperID).Msg("Save-time enrichment failed, summary stays empty until regenerated")
			}
			return nil
		})
		if !queued {
			s.logger.Warn().Str("paper_id", paperID).Msg("Enrichment not queued")
		}
	}

	return saved, nil
}

// Regenerate re-runs enrichment inline and returns the updated paper.
func (s *EnrichmentService) Regenerate(ctx context.Context, paperID string) (*models.Paper, error) {
	paper, err := s.catalog.GetPaper(ctx, NormalizeArxivID(paperID))
	if err != nil {
		return nil, err
	}
	if !paper.HasPDF() {
		return nil, fmt.Errorf("paper %s: %w", paper.ID, apperrors.ErrNoPDFAvailable)
	}
	return s.enrich(ctx, paper.ID, paper.PDFURL, triggerRegenerate)
}

func (s *EnrichmentService) enrich(ctx context.Context, paperID, pdfURL, trigger string) (*models.Paper, error) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		s.metrics.EnrichmentRuns.WithLabelValues(trigger, outcome).Inc()
		s.metrics.EnrichmentDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	}()

	pdf, err := s.fetcher.Fetch(ctx, pdfURL)
	if err != nil {
		outcome = "fetch_error"
		return nil, fmt.Errorf("fetch stage for %s: %w", paperID, err)
	}

	enrichment, err := s.analyzer.Analyze(ctx, pdf)
	if err != nil {
		outcome = "analyze_error"
		return nil, fmt.Errorf("analyze stage for %s: %w", paperID, err)
	}

	paper, err := s.catalog.MergeEnrichment(ctx, paperID, *enrichment)
	if err != nil {
		outcome = "merge_error"
		return nil, fmt.Errorf("merge stage for %s: %w", paperID, err)
	}

	s.logger.Info().
		Str("paper_id", paperID).
		Str("trigger", trigger).
		Int("topics", len(paper.Topics)).
		Dur("elapsed", time.Since(start)).
		Msg("Paper enriched")
	return paper, nil
}
