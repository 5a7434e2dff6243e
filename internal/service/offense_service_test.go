package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/repository"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
)

type offenseRepoStub struct {
	offenses   map[string]models.Offense
	resolveErr error
	reopenErr  error
}

func newOffenseRepoStub() *offenseRepoStub {
	return &offenseRepoStub{offenses: map[string]models.Offense{}}
}

func (s *offenseRepoStub) Create(ctx context.Context, offense *models.Offense) error {
	s.offenses[offense.ID] = *offense
	return nil
}

func (s *offenseRepoStub) FindByID(ctx context.Context, id string) (*models.Offense, error) {
	if o, ok := s.offenses[id]; ok {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func (s *offenseRepoStub) ListByStudent(ctx context.Context, studentNumber string) ([]models.Offense, error) {
	var out []models.Offense
	for _, o := range s.offenses {
		if o.StudentNumber == studentNumber {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *offenseRepoStub) ListActiveByStudent(ctx context.Context, studentNumber string) ([]models.Offense, error) {
	var out []models.Offense
	for _, o := range s.offenses {
		if o.StudentNumber == studentNumber && o.Status == models.OffenseActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *offenseRepoStub) Resolve(ctx context.Context, id, remarks, resolvedBy string, at time.Time) error {
	if s.resolveErr != nil {
		return s.resolveErr
	}
	o := s.offenses[id]
	o.Status = models.OffenseResolved
	o.ResolutionRemarks = &remarks
	s.offenses[id] = o
	return nil
}

func (s *offenseRepoStub) Reopen(ctx context.Context, id, reopenedBy string, at time.Time) error {
	if s.reopenErr != nil {
		return s.reopenErr
	}
	o := s.offenses[id]
	o.Status = models.OffenseActive
	s.offenses[id] = o
	return nil
}

func newOffenseFixture() (*OffenseService, *offenseRepoStub, *auditLoggerStub) {
	repo := newOffenseRepoStub()
	audit := &auditLoggerStub{}
	return NewOffenseService(repo, audit, validator.New(), nil), repo, audit
}

func sampleOffense() FileOffenseRequest {
	return FileOffenseRequest{
		StudentNumber:  "2021-00123",
		Classification: models.OffenseMinor,
		CatalogNumber:  "2",
		Description:    "Lent ID to a classmate at the gate",
		SanctionLevel:  models.SanctionFirst,
		CommittedAt:    time.Now().UTC().Add(-48 * time.Hour),
	}
}

func TestFileOffenseResolvesCatalogEntry(t *testing.T) {
	svc, repo, audit := newOffenseFixture()
	res, err := svc.File(context.Background(), osaClaims(), sampleOffense())
	require.NoError(t, err)
	assert.Equal(t, "Improper Use of ID", res.Title)
	assert.Equal(t, "Verbal warning", res.Sanction)
	assert.Equal(t, models.OffenseActive, res.Status)
	assert.Len(t, repo.offenses, 1)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionFileOffense, audit.logs[0].Action)
}

func TestFileOffenseSanctionEscalates(t *testing.T) {
	svc, _, _ := newOffenseFixture()
	req := sampleOffense()
	req.SanctionLevel = models.SanctionThird
	res, err := svc.File(context.Background(), osaClaims(), req)
	require.NoError(t, err)
	assert.Equal(t, "Suspension up to 3 school days", res.Sanction)
}

func TestFileOffenseUnknownCatalogNumber(t *testing.T) {
	svc, _, _ := newOffenseFixture()
	req := sampleOffense()
	req.CatalogNumber = "42"
	_, err := svc.File(context.Background(), osaClaims(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestFileOffenseRequiresOSA(t *testing.T) {
	svc, _, _ := newOffenseFixture()
	_, err := svc.File(context.Background(), reviewerClaims(models.RoleAdmin), sampleOffense())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResolveRequiresRemarks(t *testing.T) {
	svc, repo, _ := newOffenseFixture()
	repo.offenses["off-1"] = models.Offense{ID: "off-1", Status: models.OffenseActive}
	_, err := svc.Resolve(context.Background(), osaClaims(), "off-1", "  ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResolveClosesOffense(t *testing.T) {
	svc, repo, _ := newOffenseFixture()
	repo.offenses["off-1"] = models.Offense{ID: "off-1", StudentNumber: "2021-00123", Status: models.OffenseActive}
	res, err := svc.Resolve(context.Background(), osaClaims(), "off-1", "sanction served")
	require.NoError(t, err)
	assert.Equal(t, models.OffenseResolved, res.Status)
	require.NotNil(t, res.ResolutionRemarks)
	assert.Equal(t, "sanction served", *res.ResolutionRemarks)
}

func TestResolveAlreadyResolved(t *testing.T) {
	svc, repo, _ := newOffenseFixture()
	repo.offenses["off-1"] = models.Offense{ID: "off-1", Status: models.OffenseResolved}
	repo.resolveErr = repository.ErrStaleStatus
	_, err := svc.Resolve(context.Background(), osaClaims(), "off-1", "done")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestReopenRestoresBlock(t *testing.T) {
	svc, repo, _ := newOffenseFixture()
	repo.offenses["off-1"] = models.Offense{ID: "off-1", StudentNumber: "2021-00123", Status: models.OffenseResolved}
	res, err := svc.Reopen(context.Background(), osaClaims(), "off-1")
	require.NoError(t, err)
	assert.Equal(t, models.OffenseActive, res.Status)

	active, err := repo.ListActiveByStudent(context.Background(), "2021-00123")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestReopenNotFound(t *testing.T) {
	svc, _, _ := newOffenseFixture()
	_, err := svc.Reopen(context.Background(), osaClaims(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListByStudentSelfOnly(t *testing.T) {
	svc, repo, _ := newOffenseFixture()
	repo.offenses["off-1"] = models.Offense{ID: "off-1", StudentNumber: "2021-00123", Status: models.OffenseActive}

	res, err := svc.ListByStudent(context.Background(), studentClaims(), "2021-00123")
	require.NoError(t, err)
	assert.Len(t, res, 1)

	_, err = svc.ListByStudent(context.Background(), studentClaims(), "2021-99999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCatalogListsHandbook(t *testing.T) {
	svc, _, _ := newOffenseFixture()
	catalog := svc.Catalog()
	assert.Len(t, catalog.Major, len(models.MajorOffenseCatalog))
	assert.Len(t, catalog.Minor, len(models.MinorOffenseCatalog))
}
