package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/export"
	"github.com/noah-isme/timeblock-api/pkg/storage"
)

// ExportFormat selects the rendered export type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

const (
	exportColumnCategory   = "Category"
	exportColumnHours      = "Hours"
	exportColumnBlocks     = "Blocks"
	exportColumnPercentage = "Percentage"
	exportColumnColor      = "Color"
)

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// ParseExportFormat validates a format name; empty defaults to CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatPDF:
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

type summaryProvider interface {
	Summary(ctx context.Context, userID string) (*models.AnalyticsSummary, bool, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportFile is a rendered export held in memory.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// StoredExport describes an export persisted for later download.
type StoredExport struct {
	Filename  string       `json:"filename"`
	Format    ExportFormat `json:"format"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ExportDownload is an opened stored export. Callers close File.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders analytics summaries and stores them behind signed download links.
type ExportService struct {
	analytics summaryProvider
	storage   fileStorage
	signer    *storage.DownloadSigner
	csv       renderer
	pdf       renderer
	cfg       ExportConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. storage and signer may be nil, in which
// case only direct downloads are available.
func NewExportService(analytics summaryProvider, files fileStorage, signer *storage.DownloadSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		analytics: analytics,
		storage:   files,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(exportColumnColor),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Render builds the analytics export for userID in format.
func (s *ExportService) Render(ctx context.Context, userID string, format ExportFormat) (*ExportFile, error) {
	summary, _, err := s.analytics.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}
	dataset := buildSummaryDataset(summary)

	var body []byte
	switch format {
	case ExportFormatCSV:
		body, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		body, err = s.pdf.Render(dataset)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("analytics-%s.%s", s.now().UTC().Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// Store renders the export and saves it, returning a signed download link.
func (s *ExportService) Store(ctx context.Context, userID string, format ExportFormat) (*StoredExport, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "stored exports are not configured")
	}
	file, err := s.Render(ctx, userID, format)
	if err != nil {
		return nil, err
	}
	name, err := s.storage.Save(path.Join(storageSegment(userID), file.Filename), file.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(userID, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export stored", zap.String("user_id", userID), zap.String("file", name))
	return &StoredExport{
		Filename:  file.Filename,
		Format:    format,
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a download token to the stored file.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "stored exports are not configured")
	}
	_, name, _, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	base := path.Base(name)
	return &ExportDownload{
		File:        file,
		Filename:    base,
		ContentType: ExportFormat(strings.TrimPrefix(path.Ext(base), ".")).ContentType(),
	}, nil
}

// Cleanup removes stored exports older than the result TTL.
func (s *ExportService) Cleanup() (int, error) {
	if s.storage == nil {
		return 0, nil
	}
	deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

func buildSummaryDataset(summary *models.AnalyticsSummary) export.Dataset {
	dataset := export.Dataset{
		Title:   "Time by category",
		Headers: []string{exportColumnCategory, exportColumnHours, exportColumnBlocks, exportColumnPercentage, exportColumnColor},
	}
	count := 0
	for _, c := range summary.Categories {
		count += c.Count
		dataset.Rows = append(dataset.Rows, map[string]string{
			exportColumnCategory:   c.Label,
			exportColumnHours:      formatHours(c.Hours),
			exportColumnBlocks:     strconv.Itoa(c.Count),
			exportColumnPercentage: strconv.FormatFloat(c.Percentage, 'f', 0, 64) + "%",
			exportColumnColor:      c.Color,
		})
	}
	total := 0.0
	if summary.HasData {
		total = summary.TotalHours
	}
	dataset.Footer = []map[string]string{{
		exportColumnCategory: "Total",
		exportColumnHours:    formatHours(total),
		exportColumnBlocks:   strconv.Itoa(count),
	}}
	return dataset
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 1, 64)
}

// storageSegment maps a user id to a single safe path segment.
func storageSegment(userID string) string {
	var b strings.Builder
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "anonymous"
	}
	return b.String()
}
