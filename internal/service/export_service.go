package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/roster-api/internal/models"
	"github.com/noah-isme/roster-api/pkg/export"
	appErrors "github.com/noah-isme/roster-api/pkg/errors"
)

type rosterLister interface {
	List(ctx context.Context, query models.StudentQuery) (*StudentListResult, error)
}

type rankingProvider interface {
	TopAttendees(ctx context.Context, limit int) ([]models.AttendanceRank, bool, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var rosterHeaders = []string{"Name", "Phone", "Father Phone", "Mother Phone", "Date of Birth", "Year of Study", "Church Father", "Gender", "Type", "Address"}

var rankingHeaders = []string{"Rank", "Student ID", "Name", "Present"}

// ExportService renders the roster and the attendance ranking as CSV or PDF.
type ExportService struct {
	students rosterLister
	ranking  rankingProvider
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(students rosterLister, ranking rankingProvider, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{students: students, ranking: ranking, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ParseExportFormat validates a format query value. Empty means CSV.
func ParseExportFormat(raw string) (models.ExportFormat, error) {
	switch models.ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", models.ExportFormatCSV:
		return models.ExportFormatCSV, nil
	case models.ExportFormatPDF:
		return models.ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// Students renders the filtered roster.
func (s *ExportService) Students(ctx context.Context, query models.StudentQuery, format models.ExportFormat) (*models.ExportFile, error) {
	query.Page, query.PageSize = 0, 0
	result, err := s.students.List(ctx, query)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Headers: rosterHeaders}
	for _, row := range result.Rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":          row.Name,
			"Phone":         row.Phone,
			"Father Phone":  row.FatherPhone,
			"Mother Phone":  row.MotherPhone,
			"Date of Birth": row.DateOfBirth,
			"Year of Study": row.YearOfStudy,
			"Church Father": row.ChurchFatherName,
			"Gender":        row.Gender,
			"Type":          row.StudentType,
			"Address":       row.Address,
		})
	}
	return s.render(dataset, "students", "Student Roster", format)
}

// TopAttendees renders the attendance leaderboard.
func (s *ExportService) TopAttendees(ctx context.Context, limit int, format models.ExportFormat) (*models.ExportFile, error) {
	ranks, _, err := s.ranking.TopAttendees(ctx, limit)
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{Headers: rankingHeaders}
	for i, rank := range ranks {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Rank":       strconv.Itoa(i + 1),
			"Student ID": rank.StudentID,
			"Name":       rank.Name,
			"Present":    strconv.Itoa(rank.Count),
		})
	}
	return s.render(dataset, "top-attendees", "Top Attendees", format)
}

func (s *ExportService) render(dataset export.Dataset, base, title string, format models.ExportFormat) (*models.ExportFile, error) {
	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case models.ExportFormatPDF:
		data, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		format = models.ExportFormatCSV
		data, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		s.logger.Error("render export failed", zap.String("export", base), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("%s-%s.%s", base, s.now().UTC().Format("20060102"), format)
	return &models.ExportFile{Filename: filename, ContentType: contentType, Data: data}, nil
}
