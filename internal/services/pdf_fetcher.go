package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "paper_shelf_go_backend/internal/errors"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

const (
	defaultPDFMaxBytes     = 50 << 20
	defaultPDFFetchTimeout = 60 * time.Second
	browserUserAgent       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var ErrNotPDF = errors.New("downloaded content is not a PDF")

// PDFFetcher downloads paper PDFs into memory. Nothing is written to disk.
type PDFFetcher struct {
	httpClient *http.Client
	maxBytes   int64
	logger     zerolog.Logger
}

func NewPDFFetcher(httpClient *http.Client, maxBytes int64, logger zerolog.Logger) *PDFFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultPDFFetchTimeout}
	}
	if maxBytes <= 0 {
		maxBytes = defaultPDFMaxBytes
	}
	return &PDFFetcher{
		httpClient: httpClient,
		maxBytes:   maxBytes,
		logger:     logger.With().Str("component", "pdf_fetcher").Logger(),
	}
}

func (f *PDFFetcher) Fetch(ctx context.Context, pdfURL string) ([]byte, error) {
	target, err := upgradeToHTTPS(pdfURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build PDF request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code when downloading PDF: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF content: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("PDF exceeds %d bytes: %w", f.maxBytes, apperrors.ErrInvalidInput)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, fmt.Errorf("%w (content-type %q)", ErrNotPDF, resp.Header.Get("Content-Type"))
	}

	// A PDF the parser cannot read may still be fine for the model.
	if pages, err := countPages(data); err != nil {
		f.logger.Debug().Err(err).Str("url", target).Msg("Could not parse PDF structure")
	} else {
		f.logger.Debug().Str("url", target).Int("pages", pages).Int("bytes", len(data)).Msg("Downloaded PDF")
	}

	return data, nil
}

func countPages(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

func upgradeToHTTPS(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid PDF url %q: %w", raw, apperrors.ErrInvalidInput)
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	return u.String(), nil
}
