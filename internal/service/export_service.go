package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
	"github.com/noah-isme/edu-project-tracker/pkg/export"
)

const projectExportTitle = "Projects"

var projectExportHeaders = []string{
	"ID", "Title", "Course", "Student", "Status", "Priority", "Score",
	"Deadline", "Progress", "Overdue", "Completed At",
}

type projectExportSource interface {
	ListAll(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

// ExportService renders filtered project lists as downloadable files.
type ExportService struct {
	projects projectExportSource
	csv      csvRenderer
	pdf      pdfRenderer
	xlsx     xlsxRenderer
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export defaults.
func NewExportService(projects projectExportSource, metrics *MetricsService, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{projects: projects, csv: csv, pdf: pdf, xlsx: xlsx, metrics: metrics, logger: logger, now: time.Now}
}

// ExportProjects renders every project matching filter in the requested format.
func (s *ExportService) ExportProjects(ctx context.Context, filter models.ProjectFilter, format models.ExportFormat) (*models.ExportFile, error) {
	if format == "" {
		format = models.ExportFormatCSV
	}
	switch format {
	case models.ExportFormatCSV, models.ExportFormatPDF, models.ExportFormatXLSX:
	default:
		return nil, appErrors.Field("format", fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", format))
	}

	items, err := s.projects.ListAll(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := projectDataset(items)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = export.ContentTypeCSV
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, projectExportTitle)
		contentType = export.ContentTypePDF
	case models.ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, projectExportTitle)
		contentType = export.ContentTypeXLSX
	}
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}

	s.metrics.RecordExport(format)
	s.logger.Debug("projects exported", zap.String("format", string(format)), zap.Int("rows", len(items)))
	return &models.ExportFile{
		Filename:    fmt.Sprintf("projects_%s.%s", s.now().UTC().Format("20060102_150405"), format),
		ContentType: contentType,
		Content:     payload,
	}, nil
}

func projectDataset(items []models.ProjectListItem) export.Dataset {
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := map[string]string{
			"ID":       strconv.FormatInt(item.ID, 10),
			"Title":    item.Title,
			"Course":   item.CourseCode,
			"Student":  item.StudentCode,
			"Status":   string(item.Status),
			"Priority": string(item.Priority),
			"Progress": strconv.Itoa(item.Progress) + "%",
			"Overdue":  strconv.FormatBool(item.Overdue),
		}
		if item.Score != nil {
			row["Score"] = strconv.Itoa(*item.Score)
		}
		if item.Deadline != nil {
			row["Deadline"] = item.Deadline.Format(models.DateLayout)
		}
		if item.CompletedAt != nil {
			row["Completed At"] = item.CompletedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: projectExportHeaders, Rows: rows}
}
