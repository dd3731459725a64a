package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	appErrors "github.com/noah-isme/qr-attendance-api/pkg/errors"
)

type fakeAuthRepo struct {
	admins   map[string]*models.Admin
	created  []*models.Admin
	password map[string]string
}

func (f *fakeAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	for _, admin := range f.admins {
		if admin.Email == email {
			return admin, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	if admin, ok := f.admins[id]; ok {
		return admin, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if f.password == nil {
		f.password = make(map[string]string)
	}
	f.password[id] = passwordHash
	return nil
}

func (f *fakeAuthRepo) Create(ctx context.Context, admin *models.Admin) error {
	if f.admins == nil {
		f.admins = make(map[string]*models.Admin)
	}
	if admin.ID == "" {
		admin.ID = "seeded"
	}
	f.admins[admin.ID] = admin
	f.created = append(f.created, admin)
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(repo *fakeAuthRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "qr-attendance-api",
	})
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &fakeAuthRepo{admins: map[string]*models.Admin{
		"a1": {ID: "a1", Email: "admin@example.com", FullName: "Admin", PasswordHash: hashPassword(t, "secret123")},
	}}
	svc := newAuthFixture(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "a1", res.Admin.ID)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a1", claims.AdminID)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &fakeAuthRepo{admins: map[string]*models.Admin{
		"a1": {ID: "a1", Email: "admin@example.com", PasswordHash: hashPassword(t, "secret123")},
	}}
	svc := newAuthFixture(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmailSameError(t *testing.T) {
	svc := newAuthFixture(&fakeAuthRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	require.Error(t, err)
	// Unknown email and bad password are indistinguishable to the caller.
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthFixture(&fakeAuthRepo{})

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := &fakeAuthRepo{admins: map[string]*models.Admin{
		"a1": {ID: "a1", Email: "admin@example.com", PasswordHash: hashPassword(t, "oldpass")},
	}}
	svc := newAuthFixture(repo)

	err := svc.ChangePassword(context.Background(), "a1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpass123"})
	require.NoError(t, err)
	require.Contains(t, repo.password, "a1")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.password["a1"]), []byte("newpass123")))
}

func TestAuthServiceChangePasswordWrongOld(t *testing.T) {
	repo := &fakeAuthRepo{admins: map[string]*models.Admin{
		"a1": {ID: "a1", PasswordHash: hashPassword(t, "oldpass")},
	}}
	svc := newAuthFixture(repo)

	err := svc.ChangePassword(context.Background(), "a1", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpass123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.password)
}

func TestAuthServiceSeedAdmin(t *testing.T) {
	repo := &fakeAuthRepo{}
	svc := newAuthFixture(repo)

	require.NoError(t, svc.SeedAdmin(context.Background(), "admin@example.com", "secret123", "Admin"))
	require.Len(t, repo.created, 1)
	assert.Equal(t, "admin@example.com", repo.created[0].Email)

	// A second call sees the existing account and does nothing.
	require.NoError(t, svc.SeedAdmin(context.Background(), "admin@example.com", "secret123", "Admin"))
	assert.Len(t, repo.created, 1)
}

func TestAuthServiceSeedAdminSkippedWithoutConfig(t *testing.T) {
	repo := &fakeAuthRepo{}
	svc := newAuthFixture(repo)

	require.NoError(t, svc.SeedAdmin(context.Background(), "", "", ""))
	assert.Empty(t, repo.created)
}
