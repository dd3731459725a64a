package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
)

type fakeDirectory struct {
	students map[string]*models.Student
}

func (f *fakeDirectory) List(ctx context.Context) ([]models.Student, error) { return nil, nil }

func (f *fakeDirectory) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeDirectory) FindByIDNo(ctx context.Context, idno string) (*models.Student, error) {
	if student, ok := f.students[idno]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeDirectory) ExistsByIDNo(ctx context.Context, idno string, excludeID string) (bool, error) {
	_, ok := f.students[idno]
	return ok, nil
}

func (f *fakeDirectory) Create(ctx context.Context, student *models.Student) error { return nil }

func (f *fakeDirectory) Update(ctx context.Context, student *models.Student) error { return nil }

func (f *fakeDirectory) Delete(ctx context.Context, id string) error { return nil }

type fakeLedger struct {
	present map[string]bool
}

func (f *fakeLedger) ExistsOn(ctx context.Context, studentID, date string) (bool, error) {
	return f.present[studentID], nil
}

func (f *fakeLedger) InsertOnce(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if f.present[record.StudentID] {
		return false, nil
	}
	if f.present == nil {
		f.present = make(map[string]bool)
	}
	f.present[record.StudentID] = true
	record.ID = "a1"
	return true, nil
}

func newScanFixture(directory *fakeDirectory, ledger *fakeLedger) *ScanHandler {
	cache := service.NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	students := service.NewStudentService(directory, cache, nil, zap.NewNop(), 1024)
	checkins := service.NewCheckInService(directory, ledger, time.UTC, nil, zap.NewNop(), 1, time.Millisecond)
	return NewScanHandler(students, checkins)
}

func doCheckIn(t *testing.T, handler *ScanHandler, payload string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/checkins", bytes.NewBufferString(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.CheckIn(c)
	return rec
}

func TestScanHandlerCheckInRecorded(t *testing.T) {
	handler := newScanFixture(&fakeDirectory{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001", FirstName: "Ana"},
	}}, &fakeLedger{})

	rec := doCheckIn(t, handler, `{"idno":"2021001"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		Data models.CheckInResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.OutcomeRecorded, body.Data.Outcome)
	assert.Equal(t, "MARKED AS PRESENT!", body.Data.Message)
}

func TestScanHandlerCheckInAlreadyPresent(t *testing.T) {
	handler := newScanFixture(&fakeDirectory{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001"},
	}}, &fakeLedger{present: map[string]bool{"s1": true}})

	rec := doCheckIn(t, handler, `{"idno":"2021001"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data models.CheckInResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.OutcomeAlreadyPresent, body.Data.Outcome)
}

func TestScanHandlerCheckInUnknownStudent(t *testing.T) {
	handler := newScanFixture(&fakeDirectory{}, &fakeLedger{})

	rec := doCheckIn(t, handler, `{"idno":"999"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanHandlerCheckInMalformedPayload(t *testing.T) {
	handler := newScanFixture(&fakeDirectory{}, &fakeLedger{})

	rec := doCheckIn(t, handler, `{`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandlerResolve(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanFixture(&fakeDirectory{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001", FirstName: "Ana", LastName: "Reyes"},
	}}, &fakeLedger{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scan/2021001", nil)
	c.Params = gin.Params{{Key: "idno", Value: "2021001"}}

	handler.Resolve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data models.ScanProfile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Ana", body.Data.FirstName)
}

func TestScanHandlerResolveUnknown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newScanFixture(&fakeDirectory{}, &fakeLedger{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/scan/999", nil)
	c.Params = gin.Params{{Key: "idno", Value: "999"}}

	handler.Resolve(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
