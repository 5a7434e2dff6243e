package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/repository"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
)

var schoolYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

type settingsRepository interface {
	GetValidationPeriod(ctx context.Context) (*models.ValidationPeriod, error)
	SetValidationPeriod(ctx context.Context, startsAt, endsAt time.Time, updatedBy string) error
	GetCurrentSemester(ctx context.Context) (*models.Semester, error)
	StartSemester(ctx context.Context, schoolYear, term, startedBy string, at time.Time) error
}

// SetPeriodRequest configures the validation submission window.
type SetPeriodRequest struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

// StartSemesterRequest opens a new academic term. SchoolYear must be two
// consecutive years as YYYY-YYYY; Term is 1st or 2nd.
type StartSemesterRequest struct {
	SchoolYear string `json:"school_year" validate:"required"`
	Term       string `json:"term" validate:"required,oneof=1st 2nd"`
}

// SettingsService manages the admin-scoped campus settings: the validation
// window and the current semester.
type SettingsService struct {
	repo      settingsRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService instance.
func NewSettingsService(repo settingsRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SettingsService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// PeriodStatus is the public window check students poll before submitting.
func (s *SettingsService) PeriodStatus(ctx context.Context) (*models.PeriodStatus, error) {
	period, err := s.repo.GetValidationPeriod(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validation period")
	}
	status := &models.PeriodStatus{}
	if !period.Configured() {
		status.Message = "validation period has not been announced yet"
		return status, nil
	}
	status.StartsAt = period.StartsAt
	status.EndsAt = period.EndsAt
	now := time.Now().UTC()
	switch {
	case period.ActiveAt(now):
		status.IsActive = true
		status.Message = "validation is open"
	case now.Before(*period.StartsAt):
		status.Message = "validation has not started yet"
	default:
		status.Message = "validation has closed"
	}
	return status, nil
}

// Period returns the raw configured window for admin clients.
func (s *SettingsService) Period(ctx context.Context, claims *models.JWTClaims) (*models.ValidationPeriod, error) {
	if err := requireAdmin(claims); err != nil {
		return nil, err
	}
	period, err := s.repo.GetValidationPeriod(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validation period")
	}
	if period == nil {
		period = &models.ValidationPeriod{}
	}
	return period, nil
}

// SetPeriod replaces the validation submission window. Admin only.
func (s *SettingsService) SetPeriod(ctx context.Context, claims *models.JWTClaims, req SetPeriodRequest) error {
	if err := requireAdmin(claims); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "period end must be after its start")
	}

	if err := s.repo.SetValidationPeriod(ctx, req.StartsAt.UTC(), req.EndsAt.UTC(), claims.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save validation period")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:   &claims.UserID,
		Action:   models.AuditActionSetPeriod,
		Resource: "validation_period",
	}); err != nil {
		s.logger.Warn("failed to write period audit log", zap.Error(err))
	}
	s.logger.Info("validation period updated",
		zap.Time("starts_at", req.StartsAt),
		zap.Time("ends_at", req.EndsAt),
		zap.String("updated_by", claims.UserID))
	return nil
}

// CurrentSemester returns the active term, or NotFound before the first
// semester has been started.
func (s *SettingsService) CurrentSemester(ctx context.Context, claims *models.JWTClaims) (*models.Semester, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	semester, err := s.repo.GetCurrentSemester(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current semester")
	}
	if semester == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no semester has been started")
	}
	return semester, nil
}

// StartSemester opens a new term: the outgoing term is closed in the log and
// every student's validated flag resets. A school-year/term combination can
// only ever be started once.
func (s *SettingsService) StartSemester(ctx context.Context, claims *models.JWTClaims, req StartSemesterRequest) (*models.Semester, error) {
	if err := requireAdmin(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid semester payload")
	}
	req.SchoolYear = strings.TrimSpace(req.SchoolYear)
	match := schoolYearPattern.FindStringSubmatch(req.SchoolYear)
	if match == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school year must look like 2025-2026")
	}
	first, _ := strconv.Atoi(match[1])
	second, _ := strconv.Atoi(match[2])
	if second != first+1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school year must span two consecutive years")
	}

	now := time.Now().UTC()
	if err := s.repo.StartSemester(ctx, req.SchoolYear, req.Term, claims.UserID, now); err != nil {
		if errors.Is(err, repository.ErrDuplicateSemester) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("semester %s %s has already been started", req.SchoolYear, req.Term))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start semester")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:   &claims.UserID,
		Action:   models.AuditActionStartSemester,
		Resource: "semester",
	}); err != nil {
		s.logger.Warn("failed to write semester audit log", zap.Error(err))
	}
	s.logger.Info("semester started",
		zap.String("school_year", req.SchoolYear),
		zap.String("term", req.Term),
		zap.String("started_by", claims.UserID))
	return &models.Semester{
		SchoolYear: req.SchoolYear,
		Term:       req.Term,
		StartedAt:  now,
		StartedBy:  &claims.UserID,
	}, nil
}

func requireAdmin(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
	return nil
}
