package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paper_shelf_go_backend/internal/auth"
	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"
	"paper_shelf_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LibraryManager is the collaborator contract the handlers depend on.
type LibraryManager interface {
	Search(ctx context.Context, params services.SearchParams) ([]models.PaperRecord, error)
	Latest(ctx context.Context, category string) ([]models.PaperRecord, error)
	GetPaper(ctx context.Context, userID uuid.UUID, paperID string) (*services.PaperLookup, error)
	Save(ctx context.Context, userID uuid.UUID, record models.PaperRecord) (*models.SavedPaper, error)
	Remove(ctx context.Context, userID uuid.UUID, paperID string) error
	Regenerate(ctx context.Context, paperID string) (*models.Paper, error)
	ListSaved(ctx context.Context, userID uuid.UUID) ([]models.SavedPaper, error)
	AddTopic(ctx context.Context, userID uuid.UUID, paperID, name string) (*models.Topic, error)
	RemoveTopic(ctx context.Context, userID uuid.UUID, paperID string, topicID uint) error
	ExportBibTeX(ctx context.Context, userID uuid.UUID) (string, error)
}

func SetupRoutes(r *gin.Engine, library LibraryManager, verifier auth.TokenVerifier, users auth.UserSyncer) {
	api := r.Group("/api", auth.AuthMiddleware(verifier, users))
	{
		api.GET("/papers/search", searchPapersHandler(library))
		api.GET("/papers/latest", latestPapersHandler(library))
		api.GET("/papers/lookup", lookupPaperHandler(library))

		api.GET("/library", listLibraryHandler(library))
		api.POST("/library", savePaperHandler(library))
		api.DELETE("/library", removePaperHandler(library))
		api.POST("/library/regenerate", regenerateHandler(library))
		api.POST("/library/topics", addTopicHandler(library))
		api.DELETE("/library/topics", removeTopicHandler(library))
		api.GET("/library/export.bib", exportBibTeXHandler(library))
	}
}

// RequestLogger attaches logger to every request context and logs the outcome.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

func searchPapersHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, err := intQuery(c, "start", 0)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		maxResults, err := intQuery(c, "max_results", 0)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		records, err := library.Search(c.Request.Context(), services.SearchParams{
			Query:      c.Query("q"),
			Start:      start,
			MaxResults: maxResults,
			SortBy:     services.SortField(c.Query("sort_by")),
			SortOrder:  services.SortDirection(c.Query("sort_order")),
		})
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"papers": records})
	}
}

func latestPapersHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := library.Latest(c.Request.Context(), c.Query("category"))
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"papers": records})
	}
}

func lookupPaperHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.CurrentUser(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		lookup, err := library.GetPaper(c.Request.Context(), user.ID, c.Query("id"))
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, lookup)
	}
}

func listLibraryHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.CurrentUser(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		saved, err := library.ListSaved(c.Request.Context(), user.ID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved_papers": saved})
	}
}

func savePaperHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.CurrentUser(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		var record models.PaperRecord
		if err := c.ShouldBindJSON(&record); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		saved, err := library.Save(c.Request.Context(), user.ID, record)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusCreated, saved)
	}
}

func removePaperHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.CurrentUser(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		paperID, err := requiredQuery(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		if err := library.Remove(c.Request.Context(), user.ID, paperID); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func regenerateHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		paperID, err := requiredQuery(c, "id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		paper, err := library.Regenerate(c.Request.Context(), paperID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, paper)
	}
}

func addTopicHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.CurrentUser(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		var request struct {
			PaperID string `json:"paper_id" binding:"required"`
			Name    string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		topic, err := library.AddTopic(c.Request.Context(), user.ID, request.PaperID, request.Name)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, topic)
	}
}

func removeTopicHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.CurrentUser(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		paperID, err := requiredQuery(c, "paper_id")
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		topicID, err := strconv.ParseUint(c.Query("topic_id"), 10, 64)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("topic_id must be a positive integer"))
			return
		}

		if err := library.RemoveTopic(c.Request.Context(), user.ID, paperID, uint(topicID)); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func exportBibTeXHandler(library LibraryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.CurrentUser(c)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		bib, err := library.ExportBibTeX(c.Request.Context(), user.ID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="library.bib"`)
		c.Data(http.StatusOK, "application/x-bibtex; charset=utf-8", []byte(bib))
	}
}

func requiredQuery(c *gin.Context, name string) (string, error) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return "", apperrors.New400Error(name + " is required")
	}
	return value, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.New400Error(name + " must be a non-negative integer")
	}
	return v, nil
}
