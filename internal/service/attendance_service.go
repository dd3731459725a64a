package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
	"github.com/noah-isme/qr-attendance-api/pkg/export"
)

const displayTimeLayout = "03:04:05 PM"

type attendanceReader interface {
	ListByDate(ctx context.Context, date string) ([]models.AttendanceRow, error)
}

// AttendanceService serves read-only attendance projections. Display times
// are rendered in the institution timezone at output only; the stored
// calendar date is what the listing filters on.
type AttendanceService struct {
	repo     attendanceReader
	location *time.Location
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewAttendanceService constructs the query service.
func NewAttendanceService(repo attendanceReader, location *time.Location, logger *zap.Logger) *AttendanceService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:     repo,
		location: location,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Today returns the current calendar date in the institution timezone.
func (s *AttendanceService) Today() string {
	return time.Now().In(s.location).Format("2006-01-02")
}

// ListByDate returns the check-ins for an ISO calendar date, ascending by
// check-in time.
func (s *AttendanceService) ListByDate(ctx context.Context, date string) ([]models.AttendanceRow, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be formatted YYYY-MM-DD")
	}
	rows, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	for i := range rows {
		rows[i].DisplayTime = rows[i].TimeIn.In(s.location).Format(displayTimeLayout)
	}
	return rows, nil
}

// Export renders the daily attendance sheet as CSV or PDF. It returns the
// document bytes, content type and a suggested filename.
func (s *AttendanceService) Export(ctx context.Context, date, format string) ([]byte, string, string, error) {
	rows, err := s.ListByDate(ctx, date)
	if err != nil {
		return nil, "", "", err
	}

	dataset := export.Dataset{
		Headers: []string{"ID Number", "First Name", "Last Name", "Course", "Level", "Time In"},
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID Number":  row.IDNo,
			"First Name": row.FirstName,
			"Last Name":  row.LastName,
			"Course":     row.Course,
			"Level":      row.Level,
			"Time In":    row.DisplayTime,
		})
	}

	switch format {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", fmt.Sprintf("attendance-%s.csv", date), nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Attendance %s", date))
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", fmt.Sprintf("attendance-%s.pdf", date), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
