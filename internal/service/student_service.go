package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDNo(ctx context.Context, idno string) (*models.Student, error)
	ExistsByIDNo(ctx context.Context, idno string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for registering students. Photo is
// optional base64, with or without a data-URI prefix.
type CreateStudentRequest struct {
	IDNo      string `json:"idno" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Course    string `json:"course" validate:"required"`
	Level     string `json:"level" validate:"required"`
	Photo     string `json:"photo"`
}

// UpdateStudentRequest holds payload for updating students. An empty Photo
// leaves the stored photo untouched.
type UpdateStudentRequest struct {
	IDNo      string `json:"idno" validate:"required"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Course    string `json:"course" validate:"required"`
	Level     string `json:"level" validate:"required"`
	Photo     string `json:"photo"`
}

// StudentService handles the student directory use-cases.
type StudentService struct {
	repo          studentRepository
	cache         *CacheService
	validator     *validator.Validate
	logger        *zap.Logger
	maxPhotoBytes int64
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, maxPhotoBytes int64) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPhotoBytes <= 0 {
		maxPhotoBytes = 5 * 1024 * 1024
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger, maxPhotoBytes: maxPhotoBytes}
}

// List returns all registered students.
func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	students, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get returns a student by surrogate id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// ResolveForScan returns the scanner-facing profile for an idno, served
// through the scan cache when enabled.
func (s *StudentService) ResolveForScan(ctx context.Context, idno string) (*models.ScanProfile, error) {
	idno = strings.TrimSpace(idno)
	if idno == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "idno is required")
	}

	key := scanCacheKey(idno)
	var cached models.ScanProfile
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	student, err := s.repo.FindByIDNo(ctx, idno)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}

	profile := &models.ScanProfile{
		IDNo:      student.IDNo,
		FirstName: student.FirstName,
		LastName:  student.LastName,
		Course:    student.Course,
		Level:     student.Level,
	}
	if len(student.Photo) > 0 {
		profile.Photo = base64.StdEncoding.EncodeToString(student.Photo)
	}

	if err := s.cache.Set(ctx, key, profile); err != nil {
		s.logger.Warn("failed to cache scan profile", zap.String("idno", idno), zap.Error(err))
	}

	return profile, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	photo, err := s.decodePhoto(req.Photo)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByIDNo(ctx, req.IDNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate idno")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "idno already used")
	}
	student := &models.Student{
		IDNo:      req.IDNo,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Course:    req.Course,
		Level:     req.Level,
		Photo:     photo,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "idno already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student. The stored photo survives unless the
// request carries a replacement.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	photo, err := s.decodePhoto(req.Photo)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exists, err := s.repo.ExistsByIDNo(ctx, req.IDNo, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate idno")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "idno already used")
	}

	student := &models.Student{
		ID:        current.ID,
		IDNo:      req.IDNo,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Course:    req.Course,
		Level:     req.Level,
		Photo:     photo,
		CreatedAt: current.CreatedAt,
	}
	if err := s.repo.Update(ctx, student); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "idno already used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.invalidateScan(ctx, current.IDNo, req.IDNo)

	if photo == nil {
		student.Photo = current.Photo
	}
	return student, nil
}

// Delete removes a student and, first, every attendance record referencing
// them. Deleting an unknown student succeeds silently.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.invalidateScan(ctx, current.IDNo, "")
	return nil
}

func (s *StudentService) invalidateScan(ctx context.Context, idnos ...string) {
	for _, idno := range idnos {
		if idno == "" {
			continue
		}
		if err := s.cache.Invalidate(ctx, scanCacheKey(idno)); err != nil {
			s.logger.Warn("failed to invalidate scan cache", zap.String("idno", idno), zap.Error(err))
		}
	}
}

// decodePhoto converts the transport encoding into raw bytes. An empty
// payload yields nil, which the repository treats as keep-existing.
func (s *StudentService) decodePhoto(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "malformed photo data URI")
		}
		raw = raw[idx+1:]
	}
	photo, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "photo must be base64 encoded")
	}
	if int64(len(photo)) > s.maxPhotoBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("photo exceeds %d bytes", s.maxPhotoBytes))
	}
	// A bare data URI decodes to zero bytes; nil keeps the stored photo
	// instead of binding an empty bytea.
	if len(photo) == 0 {
		return nil, nil
	}
	return photo, nil
}

func scanCacheKey(idno string) string {
	return "scan:idno:" + idno
}
