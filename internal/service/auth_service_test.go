package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-idv-api/internal/models"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
)

type userRepoStub struct {
	users         map[string]models.User
	refreshTokens map[string]models.RefreshToken
	revokedIDs    []string
	revokedUsers  []string
	logs          []*models.AuditLog
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{
		users:         map[string]models.User{},
		refreshTokens: map[string]models.RefreshToken{},
	}
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (s *userRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.refreshTokens[token.Token] = *token
	return nil
}

func (s *userRepoStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := s.refreshTokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	s.revokedIDs = append(s.revokedIDs, id)
	for key, t := range s.refreshTokens {
		if t.ID == id {
			t.Revoked = true
			s.refreshTokens[key] = t
		}
	}
	return nil
}

func (s *userRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revokedUsers = append(s.revokedUsers, userID)
	return nil
}

func (s *userRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture(t *testing.T) (*AuthService, *userRepoStub, *limiterStub) {
	repo := newUserRepoStub()
	studentNumber := "2021-00123"
	repo.users["user-1"] = models.User{
		ID:            "user-1",
		Email:         "juan@students.campus.edu",
		PasswordHash:  hashPassword(t, "secret123"),
		FullName:      "Juan Dela Cruz",
		Role:          models.RoleStudent,
		StudentNumber: &studentNumber,
		Active:        true,
	}
	limiter := &limiterStub{denied: map[string]bool{}}
	svc := NewAuthService(repo, limiter, validator.New(), nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "campus-idv-api",
	})
	return svc, repo, limiter
}

func TestLoginIssuesTokensWithStudentNumber(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "juan@students.campus.edu", Password: "secret123", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "2021-00123", res.User.StudentNumber)
	assert.Len(t, repo.refreshTokens, 1)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "2021-00123", claims.StudentNumber)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "juan@students.campus.edu", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@campus.edu", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	user := repo.users["user-1"]
	user.Active = false
	repo.users["user-1"] = user

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "juan@students.campus.edu", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestLoginRateLimitedPerIP(t *testing.T) {
	svc, _, limiter := newAuthFixture(t)
	limiter.denied["login:10.0.0.1"] = true

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "juan@students.campus.edu", Password: "secret123", IP: "10.0.0.1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRateLimited.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "juan@students.campus.edu", Password: "secret123"})
	require.NoError(t, err)

	res, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, res.RefreshToken)

	// The presented token was revoked during rotation.
	old := repo.refreshTokens[login.RefreshToken]
	assert.True(t, old.Revoked)

	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	repo.refreshTokens["stale"] = models.RefreshToken{
		ID:        "rt-1",
		UserID:    "user-1",
		Token:     "stale",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	svc, repo, _ := newAuthFixture(t)
	err := svc.Logout(context.Background(), &models.JWTClaims{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, repo.revokedUsers)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
