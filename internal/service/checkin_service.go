package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type checkInDirectory interface {
	FindByIDNo(ctx context.Context, idno string) (*models.Student, error)
}

type checkInLedger interface {
	ExistsOn(ctx context.Context, studentID, date string) (bool, error)
	InsertOnce(ctx context.Context, record *models.AttendanceRecord) (bool, error)
}

// CheckInService coordinates one attendance-recording attempt per scan:
// resolve the idno, check for an existing record on today's calendar date,
// then insert conditionally. The ledger's (student, date) uniqueness closes
// the window between check and insert; a lost race is reported as
// already-present, never as an error.
type CheckInService struct {
	directory  checkInDirectory
	ledger     checkInLedger
	location   *time.Location
	metrics    *MetricsService
	logger     *zap.Logger
	retries    int
	retryDelay time.Duration
	now        func() time.Time
}

// NewCheckInService constructs the coordinator. location is the canonical
// institution timezone used for the dedup calendar date.
func NewCheckInService(directory checkInDirectory, ledger checkInLedger, location *time.Location, metrics *MetricsService, logger *zap.Logger, retries int, retryDelay time.Duration) *CheckInService {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries <= 0 {
		retries = 1
	}
	if retryDelay <= 0 {
		retryDelay = 100 * time.Millisecond
	}
	return &CheckInService{
		directory:  directory,
		ledger:     ledger,
		location:   location,
		metrics:    metrics,
		logger:     logger,
		retries:    retries,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

// CheckIn records attendance for the student identified by idno. The error
// return is non-nil only for the Error outcome; NotFound and AlreadyPresent
// are valid terminal outcomes, not failures.
func (s *CheckInService) CheckIn(ctx context.Context, idno string) (*models.CheckInResult, error) {
	idno = strings.TrimSpace(idno)
	if idno == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "idno is required")
	}

	resolveStart := time.Now()
	student, err := s.directory.FindByIDNo(ctx, idno)
	s.observeQuery("student_resolve", resolveStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.finish(models.OutcomeNotFound, nil, nil), nil
		}
		s.observe(models.OutcomeError)
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to resolve student")
	}

	now := s.now().In(s.location)
	date := now.Format("2006-01-02")

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				s.observe(models.OutcomeError)
				return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "check-in cancelled")
			case <-time.After(s.retryDelay):
			}
		}

		existsStart := time.Now()
		exists, err := s.ledger.ExistsOn(ctx, student.ID, date)
		s.observeQuery("attendance_exists", existsStart)
		if err != nil {
			lastErr = err
			if isTransient(err) {
				continue
			}
			break
		}
		if exists {
			return s.finish(models.OutcomeAlreadyPresent, student, nil), nil
		}

		record := &models.AttendanceRecord{
			StudentID: student.ID,
			TimeIn:    now,
			Date:      date,
		}
		insertStart := time.Now()
		inserted, err := s.ledger.InsertOnce(ctx, record)
		s.observeQuery("attendance_insert", insertStart)
		if err != nil {
			// A uniqueness rejection that surfaced as an error still means a
			// concurrent writer won; it is never retried.
			if isUniqueViolation(err) {
				return s.finish(models.OutcomeAlreadyPresent, student, nil), nil
			}
			lastErr = err
			if isTransient(err) {
				continue
			}
			break
		}
		if !inserted {
			return s.finish(models.OutcomeAlreadyPresent, student, nil), nil
		}
		return s.finish(models.OutcomeRecorded, student, record), nil
	}

	s.observe(models.OutcomeError)
	s.logger.Error("check-in failed", zap.String("idno", idno), zap.Error(lastErr))
	return nil, appErrors.Wrap(lastErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record attendance")
}

func (s *CheckInService) finish(outcome models.CheckInOutcome, student *models.Student, record *models.AttendanceRecord) *models.CheckInResult {
	s.observe(outcome)
	return &models.CheckInResult{
		Outcome: outcome,
		Message: outcome.Message(),
		Student: student,
		Record:  record,
	}
}

func (s *CheckInService) observeQuery(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

func (s *CheckInService) observe(outcome models.CheckInOutcome) {
	if s.metrics != nil {
		s.metrics.RecordCheckIn(outcome)
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isTransient reports whether err looks like a recoverable infrastructure
// failure worth one more attempt.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// Class 08: connection exceptions.
		return strings.HasPrefix(string(pqErr.Code), "08")
	}
	return false
}
