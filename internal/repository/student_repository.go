package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/qr-attendance-api/internal/models"
)

const studentColumns = "id, idno, first_name, last_name, course, level, photo, created_at"

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns all students ordered by idno. Length-first ordering keeps
// numeric identifiers in numeric order without casting.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students ORDER BY LENGTH(idno), idno`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by surrogate id.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// FindByIDNo fetches a student by business identifier.
func (r *StudentRepository) FindByIDNo(ctx context.Context, idno string) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE idno = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, idno); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by idno: %w", err)
	}
	return &student, nil
}

// ExistsByIDNo checks if a student with the given idno exists, optionally
// excluding an ID.
func (r *StudentRepository) ExistsByIDNo(ctx context.Context, idno string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE idno = $1"
	args := []interface{}{idno}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check idno: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO students (id, idno, first_name, last_name, course, level, photo, created_at)
        VALUES (:id, :idno, :first_name, :last_name, :course, :level, :photo, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student. A nil photo retains the stored one;
// a non-empty photo replaces it entirely.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET idno = $2, first_name = $3, last_name = $4, course = $5, level = $6,
        photo = COALESCE($7, photo) WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, student.ID, student.IDNo, student.FirstName,
		student.LastName, student.Course, student.Level, student.Photo); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes the student's attendance rows first, then the student row,
// in one transaction. Deleting an unknown student is a no-op.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE student_id = $1`, id); err != nil {
		return fmt.Errorf("delete student attendance: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student: %w", err)
	}
	committed = true
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// rejection.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
