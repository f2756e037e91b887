package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-project-tracker/internal/models"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
	"github.com/noah-isme/edu-project-tracker/pkg/export"
)

type exportSourceStub struct {
	items  []models.ProjectListItem
	filter models.ProjectFilter
}

func (s *exportSourceStub) ListAll(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectListItem, error) {
	s.filter = filter
	return s.items, nil
}

type pdfRendererStub struct {
	title string
	data  export.Dataset
}

func (p *pdfRendererStub) Render(data export.Dataset, title string) ([]byte, error) {
	p.title = title
	p.data = data
	return []byte("%PDF"), nil
}

func exportItems() []models.ProjectListItem {
	score := 91
	deadline := date(2024, 4, 1)
	return []models.ProjectListItem{
		{Project: models.Project{ID: 1, Title: "Compiler", Status: models.ProjectStatusCompleted, Priority: models.ProjectPriorityHigh, Score: &score}, CourseCode: "CS101", StudentCode: "STU00001", Progress: 100},
		{Project: models.Project{ID: 2, Title: "Essay, draft", Status: models.ProjectStatusDraft, Deadline: &deadline}, CourseCode: "EN100", StudentCode: "STU00002"},
	}
}

func TestExportServiceCSV(t *testing.T) {
	source := &exportSourceStub{items: exportItems()}
	svc := NewExportService(source, NewMetricsService(), nil, nil, nil, nil)
	svc.now = func() time.Time { return fixedNow }

	status := models.ProjectStatusDraft
	file, err := svc.ExportProjects(context.Background(), models.ProjectFilter{Status: status}, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "projects_20240315_103000.csv", file.Filename)
	assert.Equal(t, export.ContentTypeCSV, file.ContentType)
	assert.Equal(t, status, source.filter.Status)

	lines := strings.Split(strings.TrimSpace(string(file.Content)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ID,Title,Course,Student,Status,Priority,Score,Deadline,Progress,Overdue,Completed At", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "Compiler,CS101,STU00001,completed,high,91")
	assert.Contains(t, lines[2], `"Essay, draft"`)
	assert.Contains(t, lines[2], "2024-04-01")
}

func TestExportServicePDFUsesTitle(t *testing.T) {
	pdf := &pdfRendererStub{}
	svc := NewExportService(&exportSourceStub{items: exportItems()}, nil, nil, nil, pdf, nil)

	file, err := svc.ExportProjects(context.Background(), models.ProjectFilter{}, models.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, export.ContentTypePDF, file.ContentType)
	assert.Equal(t, "Projects", pdf.title)
	assert.Len(t, pdf.data.Rows, 2)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
}

func TestExportServiceXLSX(t *testing.T) {
	svc := NewExportService(&exportSourceStub{items: exportItems()}, nil, nil, nil, nil, nil)

	file, err := svc.ExportProjects(context.Background(), models.ProjectFilter{}, models.ExportFormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, export.ContentTypeXLSX, file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Content), "PK"))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(&exportSourceStub{}, nil, nil, nil, nil, nil)

	_, err := svc.ExportProjects(context.Background(), models.ProjectFilter{}, models.ExportFormat("docx"))
	appErr := assertAppError(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErr.Details, "format")
}
