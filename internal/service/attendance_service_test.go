package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type fakeAttendanceReader struct {
	rows map[string][]models.AttendanceRow
	err  error
}

func (f *fakeAttendanceReader) ListByDate(ctx context.Context, date string) ([]models.AttendanceRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[date], nil
}

func manilaLocation(t *testing.T) *time.Location {
	t.Helper()
	location, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	return location
}

func TestAttendanceServiceListByDate(t *testing.T) {
	location := manilaLocation(t)
	// 23:45 UTC on the 29th is 07:45 on the 30th in Manila.
	timeIn := time.Date(2026, 8, 29, 23, 45, 0, 0, time.UTC)
	reader := &fakeAttendanceReader{rows: map[string][]models.AttendanceRow{
		"2026-08-30": {
			{StudentID: "s1", IDNo: "2021001", FirstName: "Ana", TimeIn: timeIn},
		},
	}}
	svc := NewAttendanceService(reader, location, zap.NewNop())

	rows, err := svc.ListByDate(context.Background(), "2026-08-30")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "07:45:00 AM", rows[0].DisplayTime)
}

func TestAttendanceServiceListByDateRejectsMalformedDate(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceReader{}, time.UTC, zap.NewNop())

	for _, date := range []string{"30-08-2026", "2026/08/30", "yesterday", ""} {
		_, err := svc.ListByDate(context.Background(), date)
		require.Error(t, err, date)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestAttendanceServiceListByDateEmpty(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceReader{}, time.UTC, zap.NewNop())

	rows, err := svc.ListByDate(context.Background(), "2026-08-30")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAttendanceServiceExportCSV(t *testing.T) {
	reader := &fakeAttendanceReader{rows: map[string][]models.AttendanceRow{
		"2026-08-30": {
			{StudentID: "s1", IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "1", TimeIn: time.Date(2026, 8, 30, 7, 45, 0, 0, time.UTC)},
		},
	}}
	svc := NewAttendanceService(reader, time.UTC, zap.NewNop())

	payload, contentType, filename, err := svc.Export(context.Background(), "2026-08-30", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "attendance-2026-08-30.csv", filename)

	body := string(payload)
	assert.True(t, strings.Contains(body, "ID Number"))
	assert.True(t, strings.Contains(body, "2021001"))
	assert.True(t, strings.Contains(body, "07:45:00 AM"))
}

func TestAttendanceServiceExportPDF(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceReader{}, time.UTC, zap.NewNop())

	payload, contentType, filename, err := svc.Export(context.Background(), "2026-08-30", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Equal(t, "attendance-2026-08-30.pdf", filename)
	assert.NotEmpty(t, payload)
}

func TestAttendanceServiceExportUnknownFormat(t *testing.T) {
	svc := NewAttendanceService(&fakeAttendanceReader{}, time.UTC, zap.NewNop())

	_, _, _, err := svc.Export(context.Background(), "2026-08-30", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
