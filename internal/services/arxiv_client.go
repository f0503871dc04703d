package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "paper_shelf_go_backend/internal/errors"
	"paper_shelf_go_backend/internal/models"
	"paper_shelf_go_backend/internal/observability"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultArxivBaseURL    = "https://export.arxiv.org/api/query"
	defaultArxivUserAgent  = "paper-shelf/1.0 (+https://github.com/paper-shelf)"
	defaultLatestPageSize  = 10
	defaultMaxRetries      = 3
	defaultInitialBackoff  = time.Second
	defaultRequestInterval = 3 * time.Second
	maxFeedBytes           = 10 << 20
)

type SortField string

const (
	SortByRelevance     SortField = "relevance"
	SortBySubmittedDate SortField = "submittedDate"
)

type SortDirection string

const (
	SortAscending  SortDirection = "ascending"
	SortDescending SortDirection = "descending"
)

type SearchParams struct {
	Query      string
	Start      int
	MaxResults int
	SortBy     SortField
	SortOrder  SortDirection
}

// ArxivConfig tunes the client. Zero values fall back to the defaults above.
type ArxivConfig struct {
	BaseURL        string
	MaxRetries     int
	InitialBackoff time.Duration
	// RequestInterval is the minimum spacing between requests; arXiv asks for one every 3s.
	RequestInterval time.Duration
	Burst           int
	LatestPageSize  int
	Timeout         time.Duration
}

// ArxivEntry represents the structure of an entry in the arXiv API response
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Authors   []ArxivName `xml:"author"`
	Links     []ArxivLink `xml:"link"`
}

type ArxivName struct {
	Name string `xml:"name"`
}

type ArxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// ArxivFeed represents the structure of the arXiv API response
type ArxivFeed struct {
	Entries []ArxivEntry `xml:"entry"`
}

type ArxivClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     ArxivConfig
	metrics    *observability.Metrics
	logger     zerolog.Logger
}

func NewArxivClient(cfg ArxivConfig, httpClient *http.Client, metrics *observability.Metrics, logger zerolog.Logger) *ArxivClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultArxivBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.RequestInterval <= 0 {
		cfg.RequestInterval = defaultRequestInterval
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 3
	}
	if cfg.LatestPageSize <= 0 {
		cfg.LatestPageSize = defaultLatestPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ArxivClient{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestInterval), cfg.Burst),
		config:     cfg,
		metrics:    metrics,
		logger:     logger.With().Str("component", "arxiv_client").Logger(),
	}
}

// Search runs a feed query and maps every entry to a normalized record.
func (c *ArxivClient) Search(ctx context.Context, params SearchParams) ([]models.PaperRecord, error) {
	query := url.Values{}
	query.Set("search_query", strings.TrimSpace(params.Query))
	query.Set("start", strconv.Itoa(max(params.Start, 0)))
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.LatestPageSize
	}
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("sortBy", string(normalizeSortField(params.SortBy)))
	query.Set("sortOrder", string(normalizeSortDirection(params.SortOrder)))

	feed, err := c.query(ctx, query)
	if err != nil {
		c.metrics.SearchRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	records := make([]models.PaperRecord, 0, len(feed.Entries))
	for i := range feed.Entries {
		if rec, ok := entryToRecord(&feed.Entries[i]); ok {
			records = append(records, rec)
		}
	}

	outcome := "ok"
	if len(records) == 0 {
		outcome = "empty"
	}
	c.metrics.SearchRequests.WithLabelValues(outcome).Inc()
	return records, nil
}

// Latest returns the newest submissions in an arXiv category.
func (c *ArxivClient) Latest(ctx context.Context, category string) ([]models.PaperRecord, error) {
	return c.Search(ctx, SearchParams{
		Query:      "cat:" + strings.TrimSpace(category),
		MaxResults: c.config.LatestPageSize,
		SortBy:     SortBySubmittedDate,
		SortOrder:  SortDescending,
	})
}

// FetchByID looks up a single paper by identifier.
func (c *ArxivClient) FetchByID(ctx context.Context, id string) (*models.PaperRecord, error) {
	id = NormalizeArxivID(id)
	query := url.Values{}
	query.Set("id_list", id)

	feed, err := c.query(ctx, query)
	if err != nil {
		return nil, err
	}
	for i := range feed.Entries {
		if rec, ok := entryToRecord(&feed.Entries[i]); ok {
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("arxiv paper %s: %w", id, apperrors.ErrNotFound)
}

// query performs the request, retrying rate-limit responses with exponential
// backoff. Any other failure is returned immediately.
func (c *ArxivClient) query(ctx context.Context, query url.Values) (*ArxivFeed, error) {
	endpoint := c.config.BaseURL + "?" + query.Encode()
	backoff := c.config.InitialBackoff

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		feed, status, err := c.do(ctx, endpoint)
		if err == nil {
			return feed, nil
		}
		if !isRateLimited(status) {
			return nil, err
		}
		if attempt >= c.config.MaxRetries {
			return nil, fmt.Errorf("arxiv still rate limited after %d attempts: %w", attempt+1, apperrors.ErrTransientProvider)
		}

		c.metrics.SearchRetries.Inc()
		c.logger.Warn().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("arXiv rate limited, backing off")
		if err := sleepContext(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (c *ArxivClient) do(ctx context.Context, endpoint string) (*ArxivFeed, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultArxivUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch arXiv feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil, resp.StatusCode, fmt.Errorf("arXiv returned status code %d", resp.StatusCode)
	}

	var feed ArxivFeed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&feed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to parse XML response: %w", err)
	}
	return &feed, resp.StatusCode, nil
}

// arXiv signals throttling with 429 and, more often, 503 plus Retry-After.
func isRateLimited(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func entryToRecord(entry *ArxivEntry) (models.PaperRecord, bool) {
	id := NormalizeArxivID(entry.ID)
	if id == "" {
		return models.PaperRecord{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, author := range entry.Authors {
		if name := collapseWhitespace(author.Name); name != "" {
			authors = append(authors, name)
		}
	}

	var published time.Time
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(entry.Published)); err == nil {
		published = t.UTC()
	}

	absURL := strings.TrimSpace(entry.ID)
	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			if pdfURL == "" {
				pdfURL = link.Href
			}
			continue
		}
		if link.Rel == "alternate" && link.Href != "" {
			absURL = link.Href
		}
	}

	return models.PaperRecord{
		ID:          id,
		Title:       collapseWhitespace(entry.Title),
		Authors:     authors,
		Abstract:    collapseWhitespace(entry.Summary),
		URL:         absURL,
		PDFURL:      pdfURL,
		PublishedAt: published,
	}, true
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeSortField(f SortField) SortField {
	switch strings.ToLower(string(f)) {
	case "submitteddate", "submitted_date", "submission-date", "date":
		return SortBySubmittedDate
	default:
		return SortByRelevance
	}
}

func normalizeSortDirection(d SortDirection) SortDirection {
	if strings.EqualFold(string(d), string(SortAscending)) || strings.EqualFold(string(d), "asc") {
		return SortAscending
	}
	return SortDescending
}
