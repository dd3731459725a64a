package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type fakeStudentRepo struct {
	students  map[string]*models.Student
	created   []*models.Student
	updated   []*models.Student
	deleted   []string
	createErr error
}

func (f *fakeStudentRepo) List(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.students {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for _, s := range f.students {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) FindByIDNo(ctx context.Context, idno string) (*models.Student, error) {
	if s, ok := f.students[idno]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) ExistsByIDNo(ctx context.Context, idno string, excludeID string) (bool, error) {
	s, ok := f.students[idno]
	if !ok {
		return false, nil
	}
	if excludeID != "" && s.ID == excludeID {
		return false, nil
	}
	return true, nil
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if f.createErr != nil {
		return f.createErr
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	if f.students == nil {
		f.students = make(map[string]*models.Student)
	}
	f.students[student.IDNo] = student
	f.created = append(f.created, student)
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	// Copy at call time: the service patches the returned struct afterwards.
	copied := *student
	f.updated = append(f.updated, &copied)
	return nil
}

func (f *fakeStudentRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func newStudentFixture(repo *fakeStudentRepo) *StudentService {
	cache := NewCacheService(nil, nil, time.Minute, zap.NewNop(), false)
	return NewStudentService(repo, cache, nil, zap.NewNop(), 1024)
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &fakeStudentRepo{}
	svc := newStudentFixture(repo)

	photo := base64.StdEncoding.EncodeToString([]byte("img"))
	student, err := svc.Create(context.Background(), CreateStudentRequest{
		IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "1", Photo: photo,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, []byte("img"), student.Photo)
}

func TestStudentServiceCreateDuplicateIDNo(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001"},
	}}
	svc := newStudentFixture(repo)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateKey.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestStudentServiceCreateRejectsOversizedPhoto(t *testing.T) {
	svc := newStudentFixture(&fakeStudentRepo{})

	big := base64.StdEncoding.EncodeToString(make([]byte, 2048))
	_, err := svc.Create(context.Background(), CreateStudentRequest{
		IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "1", Photo: big,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateKeepsPhotoWhenEmpty(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001", FirstName: "Ana", Photo: []byte("old")},
	}}
	svc := newStudentFixture(repo)

	student, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{
		IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "2",
	})
	require.NoError(t, err)
	require.Len(t, repo.updated, 1)
	// Nil reaches the repository so COALESCE keeps the stored image.
	assert.Nil(t, repo.updated[0].Photo)
	assert.Equal(t, []byte("old"), student.Photo)
}

func TestStudentServiceUpdateKeepsPhotoOnBareDataURI(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001", Photo: []byte("old")},
	}}
	svc := newStudentFixture(repo)

	// A data URI with no body decodes to zero bytes; that must not wipe
	// the stored image through an empty bytea bind.
	student, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{
		IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "2",
		Photo: "data:image/png;base64,",
	})
	require.NoError(t, err)
	require.Len(t, repo.updated, 1)
	assert.Nil(t, repo.updated[0].Photo)
	assert.Equal(t, []byte("old"), student.Photo)
}

func TestStudentServiceUpdateReplacesPhoto(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001", Photo: []byte("old")},
	}}
	svc := newStudentFixture(repo)

	newPhoto := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("new"))
	student, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{
		IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "2", Photo: newPhoto,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), student.Photo)
}

func TestStudentServiceUpdateMissing(t *testing.T) {
	svc := newStudentFixture(&fakeStudentRepo{})

	_, err := svc.Update(context.Background(), "missing", UpdateStudentRequest{
		IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeleteIdempotent(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001"},
	}}
	svc := newStudentFixture(repo)

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)

	// Unknown ids succeed silently.
	require.NoError(t, svc.Delete(context.Background(), "missing"))
	assert.Len(t, repo.deleted, 1)
}

func TestStudentServiceResolveForScan(t *testing.T) {
	repo := &fakeStudentRepo{students: map[string]*models.Student{
		"2021001": {ID: "s1", IDNo: "2021001", FirstName: "Ana", LastName: "Reyes", Course: "BSIT", Level: "1", Photo: []byte("img")},
	}}
	svc := newStudentFixture(repo)

	profile, err := svc.ResolveForScan(context.Background(), " 2021001 ")
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.FirstName)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), profile.Photo)
}

func TestStudentServiceResolveForScanUnknown(t *testing.T) {
	svc := newStudentFixture(&fakeStudentRepo{})

	_, err := svc.ResolveForScan(context.Background(), "999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
