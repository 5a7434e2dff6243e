package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/repository"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
)

type settingsRepoStub struct {
	period      *models.ValidationPeriod
	semester    *models.Semester
	started     []string
	semesterErr error
}

func (s *settingsRepoStub) GetValidationPeriod(ctx context.Context) (*models.ValidationPeriod, error) {
	return s.period, nil
}

func (s *settingsRepoStub) SetValidationPeriod(ctx context.Context, startsAt, endsAt time.Time, updatedBy string) error {
	s.period = &models.ValidationPeriod{StartsAt: &startsAt, EndsAt: &endsAt, UpdatedBy: &updatedBy}
	return nil
}

func (s *settingsRepoStub) GetCurrentSemester(ctx context.Context) (*models.Semester, error) {
	return s.semester, nil
}

func (s *settingsRepoStub) StartSemester(ctx context.Context, schoolYear, term, startedBy string, at time.Time) error {
	if s.semesterErr != nil {
		return s.semesterErr
	}
	s.started = append(s.started, schoolYear+" "+term)
	s.semester = &models.Semester{SchoolYear: schoolYear, Term: term, StartedAt: at, StartedBy: &startedBy}
	return nil
}

func newSettingsFixture() (*SettingsService, *settingsRepoStub, *auditLoggerStub) {
	repo := &settingsRepoStub{}
	audit := &auditLoggerStub{}
	return NewSettingsService(repo, audit, validator.New(), nil), repo, audit
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, FullName: "Maria Santos"}
}

func TestPeriodStatusUnconfigured(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	status, err := svc.PeriodStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsActive)
	assert.Equal(t, "validation period has not been announced yet", status.Message)
}

func TestPeriodStatusActive(t *testing.T) {
	svc, repo, _ := newSettingsFixture()
	repo.period = openPeriod()
	status, err := svc.PeriodStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.IsActive)
	assert.NotNil(t, status.StartsAt)
}

func TestPeriodStatusClosed(t *testing.T) {
	svc, repo, _ := newSettingsFixture()
	start := time.Now().UTC().Add(-72 * time.Hour)
	end := time.Now().UTC().Add(-24 * time.Hour)
	repo.period = &models.ValidationPeriod{StartsAt: &start, EndsAt: &end}
	status, err := svc.PeriodStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsActive)
	assert.Equal(t, "validation has closed", status.Message)
}

func TestSetPeriodRejectsInvertedWindow(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	now := time.Now().UTC()
	err := svc.SetPeriod(context.Background(), adminClaims(), SetPeriodRequest{StartsAt: now, EndsAt: now.Add(-time.Hour)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSetPeriodAdminOnly(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	now := time.Now().UTC()
	err := svc.SetPeriod(context.Background(), osaClaims(), SetPeriodRequest{StartsAt: now, EndsAt: now.Add(time.Hour)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSetPeriodPersistsWindow(t *testing.T) {
	svc, repo, audit := newSettingsFixture()
	now := time.Now().UTC()
	err := svc.SetPeriod(context.Background(), adminClaims(), SetPeriodRequest{StartsAt: now, EndsAt: now.Add(14 * 24 * time.Hour)})
	require.NoError(t, err)
	require.True(t, repo.period.Configured())
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSetPeriod, audit.logs[0].Action)
}

func TestStartSemesterValidatesSchoolYear(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	for _, schoolYear := range []string{"2025", "25-26", "2025-2027", "abcd-efgh"} {
		_, err := svc.StartSemester(context.Background(), adminClaims(), StartSemesterRequest{SchoolYear: schoolYear, Term: "1st"})
		require.Error(t, err, schoolYear)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestStartSemesterValidatesTerm(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	_, err := svc.StartSemester(context.Background(), adminClaims(), StartSemesterRequest{SchoolYear: "2025-2026", Term: "3rd"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStartSemesterDuplicate(t *testing.T) {
	svc, repo, _ := newSettingsFixture()
	repo.semesterErr = repository.ErrDuplicateSemester
	_, err := svc.StartSemester(context.Background(), adminClaims(), StartSemesterRequest{SchoolYear: "2025-2026", Term: "1st"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStartSemesterOpensTerm(t *testing.T) {
	svc, repo, audit := newSettingsFixture()
	res, err := svc.StartSemester(context.Background(), adminClaims(), StartSemesterRequest{SchoolYear: "2025-2026", Term: "2nd"})
	require.NoError(t, err)
	assert.Equal(t, "2025-2026", res.SchoolYear)
	assert.Equal(t, "2nd", res.Term)
	assert.Equal(t, []string{"2025-2026 2nd"}, repo.started)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStartSemester, audit.logs[0].Action)
}

func TestCurrentSemesterNotStarted(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	_, err := svc.CurrentSemester(context.Background(), adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
