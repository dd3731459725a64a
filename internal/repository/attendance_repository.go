package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

// AttendanceRepository handles persistence for check-in records. Rows are
// append-only; the attendance_student_date_key constraint is what makes the
// coordinator's read-then-insert sequence safe under concurrency.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ExistsOn reports whether the student already has a record for the calendar
// date (formatted 2006-01-02).
func (r *AttendanceRepository) ExistsOn(ctx context.Context, studentID, date string) (bool, error) {
	const query = `SELECT 1 FROM attendance WHERE student_id = $1 AND date = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, date); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return true, nil
}

// InsertOnce attempts a conditional insert. It returns false with no error
// when a concurrent writer already recorded the (student, date) pair; the
// caller maps that to the already-present outcome.
func (r *AttendanceRepository) InsertOnce(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `INSERT INTO attendance (id, student_id, time_in, date)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (student_id, date) DO NOTHING
        RETURNING id`
	var insertedID string
	if err := r.db.QueryRowxContext(ctx, query, record.ID, record.StudentID, record.TimeIn, record.Date).Scan(&insertedID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	return true, nil
}

// ListByDate returns all check-ins for a calendar date joined with the
// student profile, ascending by check-in time.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date string) ([]models.AttendanceRow, error) {
	const query = `SELECT s.id AS student_id, s.idno, s.first_name, s.last_name, s.course, s.level, a.time_in
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        WHERE a.date = $1
        ORDER BY a.time_in ASC`
	var rows []models.AttendanceRow
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}
