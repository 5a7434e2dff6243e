package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/repository"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
)

type offenseRepository interface {
	Create(ctx context.Context, offense *models.Offense) error
	FindByID(ctx context.Context, id string) (*models.Offense, error)
	ListByStudent(ctx context.Context, studentNumber string) ([]models.Offense, error)
	ListActiveByStudent(ctx context.Context, studentNumber string) ([]models.Offense, error)
	Resolve(ctx context.Context, id, remarks, resolvedBy string, at time.Time) error
	Reopen(ctx context.Context, id, reopenedBy string, at time.Time) error
}

// FileOffenseRequest records a new disciplinary entry against a student. The
// title and sanction text come from the handbook catalog, not the caller.
type FileOffenseRequest struct {
	StudentNumber  string                       `json:"student_number" validate:"required"`
	Classification models.OffenseClassification `json:"classification" validate:"required,oneof=major minor"`
	CatalogNumber  string                       `json:"catalog_number" validate:"required"`
	Description    string                       `json:"description" validate:"required"`
	SanctionLevel  models.SanctionLevel         `json:"sanction_level" validate:"required,oneof=first second third"`
	CommittedAt    time.Time                    `json:"committed_at" validate:"required"`
}

// OffenseCatalog is the handbook listing served to OSA clients.
type OffenseCatalog struct {
	Major []models.CatalogEntry `json:"major"`
	Minor []models.CatalogEntry `json:"minor"`
}

// OffenseService manages disciplinary records; active records block the
// student's validation submissions until resolved.
type OffenseService struct {
	repo      offenseRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOffenseService constructs an OffenseService instance.
func NewOffenseService(repo offenseRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *OffenseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &OffenseService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Catalog returns the handbook offense listing.
func (s *OffenseService) Catalog() OffenseCatalog {
	return OffenseCatalog{Major: models.MajorOffenseCatalog, Minor: models.MinorOffenseCatalog}
}

// File records a new active offense. OSA only.
func (s *OffenseService) File(ctx context.Context, claims *models.JWTClaims, req FileOffenseRequest) (*models.Offense, error) {
	if err := requireOSA(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offense payload")
	}

	entry, ok := models.FindCatalogEntry(req.Classification, req.CatalogNumber)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown handbook offense number")
	}

	now := time.Now().UTC()
	offense := &models.Offense{
		ID:             uuid.NewString(),
		StudentNumber:  req.StudentNumber,
		Classification: req.Classification,
		CatalogNumber:  req.CatalogNumber,
		Title:          entry.Title,
		Description:    req.Description,
		Sanction:       entry.Sanctions.Sanction(req.SanctionLevel),
		SanctionLevel:  req.SanctionLevel,
		Status:         models.OffenseActive,
		RecordedBy:     claims.FullName,
		CommittedAt:    req.CommittedAt,
		RecordedAt:     now,
	}
	if err := s.repo.Create(ctx, offense); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record offense")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionFileOffense,
		Resource:   "offense",
		ResourceID: &offense.ID,
	}); err != nil {
		s.logger.Warn("failed to write offense audit log", zap.Error(err))
	}

	s.logger.Info("offense filed",
		zap.String("student_number", req.StudentNumber),
		zap.String("offense_id", offense.ID),
		zap.String("classification", string(req.Classification)))
	return offense, nil
}

// Resolve closes an active offense with the mandatory resolution remarks.
func (s *OffenseService) Resolve(ctx context.Context, claims *models.JWTClaims, id, remarks string) (*models.Offense, error) {
	if err := requireOSA(claims); err != nil {
		return nil, err
	}
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "resolution remarks are required")
	}

	if _, err := s.findOffense(ctx, id); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.repo.Resolve(ctx, id, remarks, claims.FullName, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "offense is not active")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offense")
	}
	s.writeAudit(ctx, claims, models.AuditActionResolveOffense, id)
	return s.findOffense(ctx, id)
}

// Reopen flips a resolved offense back to active, restoring its submission
// block.
func (s *OffenseService) Reopen(ctx context.Context, claims *models.JWTClaims, id string) (*models.Offense, error) {
	if err := requireOSA(claims); err != nil {
		return nil, err
	}
	if _, err := s.findOffense(ctx, id); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.repo.Reopen(ctx, id, claims.FullName, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "offense is not resolved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reopen offense")
	}
	s.writeAudit(ctx, claims, models.AuditActionReopenOffense, id)
	return s.findOffense(ctx, id)
}

// ListByStudent returns a student's full disciplinary record. Reviewers see
// any student; a student token only sees its own.
func (s *OffenseService) ListByStudent(ctx context.Context, claims *models.JWTClaims, studentNumber string) ([]models.Offense, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role == models.RoleStudent && claims.StudentNumber != studentNumber {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	offenses, err := s.repo.ListByStudent(ctx, studentNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list offenses")
	}
	return offenses, nil
}

func (s *OffenseService) findOffense(ctx context.Context, id string) (*models.Offense, error) {
	offense, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offense not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch offense")
	}
	return offense, nil
}

func (s *OffenseService) writeAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "offense",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to write offense audit log", zap.Error(err))
	}
}

func requireOSA(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleOSA {
		return appErrors.Clone(appErrors.ErrForbidden, "only OSA staff may manage offenses")
	}
	return nil
}
