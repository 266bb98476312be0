package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/storage"
)

type stubSummary struct {
	summary *models.AnalyticsSummary
	err     error
}

func (s stubSummary) Summary(context.Context, string) (*models.AnalyticsSummary, bool, error) {
	return s.summary, false, s.err
}

func sampleSummary() *models.AnalyticsSummary {
	return &models.AnalyticsSummary{
		Categories: []models.CategoryDuration{
			{ID: models.CategoryCLT, Label: "CLT", Color: "#3b82f6", Hours: 3, Count: 1, Percentage: 75},
			{ID: models.CategoryPJ, Label: "PJ", Color: "#10b981", Hours: 1, Count: 2, Percentage: 25},
		},
		TotalHours: 4,
		HasData:    true,
	}
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, format)

	format, err = ParseExportFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, format)
	assert.Equal(t, "application/pdf", format.ContentType())

	_, err = ParseExportFormat("xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc := NewExportService(stubSummary{summary: sampleSummary()}, nil, nil, ExportConfig{}, nil)
	svc.now = func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }

	file, err := svc.Render(context.Background(), "u1", ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "analytics-20240115-103000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Category", "Hours", "Blocks", "Percentage", "Color"}, records[0])
	assert.Equal(t, []string{"CLT", "3.0", "1", "75%", "#3b82f6"}, records[1])
	assert.Equal(t, []string{"Total", "4.0", "3", "", ""}, records[3])
}

func TestExportServiceRenderEmptyTotal(t *testing.T) {
	summary := &models.AnalyticsSummary{TotalHours: 1, HasData: false}
	dataset := buildSummaryDataset(summary)
	require.Len(t, dataset.Footer, 1)
	assert.Equal(t, "0.0", dataset.Footer[0]["Hours"])
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc := NewExportService(stubSummary{summary: sampleSummary()}, nil, nil, ExportConfig{}, nil)

	file, err := svc.Render(context.Background(), "u1", ExportFormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportServiceRenderPropagatesError(t *testing.T) {
	svc := NewExportService(stubSummary{err: appErrors.ErrUnauthorized}, nil, nil, ExportConfig{}, nil)
	_, err := svc.Render(context.Background(), "u1", ExportFormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestExportServiceStoreAndOpen(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewDownloadSigner("secret", time.Hour)
	svc := NewExportService(stubSummary{summary: sampleSummary()}, files, signer, ExportConfig{APIPrefix: "/api/v1/"}, nil)

	stored, err := svc.Store(context.Background(), "user@example.com", ExportFormatCSV)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored.URL, "/api/v1/exports/"))
	assert.Equal(t, ExportFormatCSV, stored.Format)
	assert.True(t, stored.ExpiresAt.After(time.Now()))

	token := strings.TrimPrefix(stored.URL, "/api/v1/exports/")
	download, err := svc.Open(token)
	require.NoError(t, err)
	defer download.File.Close()

	assert.Equal(t, stored.Filename, download.Filename)
	assert.Equal(t, "text/csv", download.ContentType)
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Total")

	_, err = svc.Open(token + "x")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	removed, err := svc.Cleanup()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestExportServiceStoreDisabled(t *testing.T) {
	svc := NewExportService(stubSummary{summary: sampleSummary()}, nil, nil, ExportConfig{}, nil)

	_, err := svc.Store(context.Background(), "u1", ExportFormatCSV)
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))
	_, err = svc.Open("token")
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))
	removed, err := svc.Cleanup()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStorageSegment(t *testing.T) {
	assert.Equal(t, "user_example_com", storageSegment("user@example.com"))
	assert.Equal(t, "___etc", storageSegment("../etc"))
	assert.Equal(t, "anonymous", storageSegment(""))
}
