package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/repository"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/qr"
	"github.com/noah-isme/campus-idv-api/pkg/ratelimit"
)

type qrCodeRepository interface {
	FindByStudentAndToken(ctx context.Context, studentNumber, token string) (*models.QRCode, error)
	FindByID(ctx context.Context, id string) (*models.QRCode, error)
	Complete(ctx context.Context, p repository.CompleteParams) error
	HistoryByStudent(ctx context.Context, studentNumber string) ([]models.ValidationHistoryEntry, error)
}

type studentProfileReader interface {
	FindByStudentNumber(ctx context.Context, studentNumber string) (*models.StudentProfile, error)
}

type semesterReader interface {
	GetCurrentSemester(ctx context.Context) (*models.Semester, error)
}

// VerifyRequest carries the raw string read off the scanned QR image.
type VerifyRequest struct {
	QRData string `json:"qr_data" validate:"required"`
}

// VerifyResult is what the scanner operator sees before deciding whether the
// physical requirements check out.
type VerifyResult struct {
	QRCodeID  string                 `json:"qr_code_id"`
	Student   models.GateStudentInfo `json:"student"`
	ExpiresAt time.Time              `json:"expires_at"`
}

// CompleteRequest finalizes a gate scan after the operator's visual check.
type CompleteRequest struct {
	QRCodeID             string `json:"qr_code_id" validate:"required"`
	StudentNumber        string `json:"student_number" validate:"required"`
	RequirementsComplete bool   `json:"requirements_complete"`
}

// CompleteResult reports whether the student ended up validated.
type CompleteResult struct {
	StudentNumber string `json:"student_number"`
	Validated     bool   `json:"validated"`
	Message       string `json:"message"`
}

// ScanServiceConfig carries the gate throttling knobs.
type ScanServiceConfig struct {
	VerifyPerMinute   int
	CompletePerMinute int
}

// ScanService backs the gate scanner: decoding presented QR credentials and
// consuming them once the operator confirms the physical requirements.
type ScanService struct {
	qrCodes   qrCodeRepository
	students  studentProfileReader
	settings  semesterReader
	audit     auditLogger
	limiter   rateLimiter
	validator *validator.Validate
	logger    *zap.Logger
	config    ScanServiceConfig
}

// NewScanService constructs a ScanService instance.
func NewScanService(qrCodes qrCodeRepository, students studentProfileReader, settings semesterReader, audit auditLogger, limiter rateLimiter, validate *validator.Validate, logger *zap.Logger, config ScanServiceConfig) *ScanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.VerifyPerMinute <= 0 {
		config.VerifyPerMinute = 30
	}
	if config.CompletePerMinute <= 0 {
		config.CompletePerMinute = 20
	}
	return &ScanService{
		qrCodes:   qrCodes,
		students:  students,
		settings:  settings,
		audit:     audit,
		limiter:   limiter,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Verify decodes a scanned QR string and, when the credential is live, returns
// the student snapshot for the operator's visual cross-check. Read-only: a
// verify never consumes the credential.
func (s *ScanService) Verify(ctx context.Context, clientIP string, req VerifyRequest) (*VerifyResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verify payload")
	}

	res, err := s.limiter.Allow(ctx, "verify:"+clientIP, ratelimit.PerMinute(s.config.VerifyPerMinute))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rate limiter unavailable")
	}
	if !res.Allowed {
		return nil, appErrors.WithDetails(appErrors.ErrRateLimited, "too many scans, slow down", res)
	}

	payload, err := qr.Decode(req.QRData)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unrecognized QR code format")
	}

	code, err := s.qrCodes.FindByStudentAndToken(ctx, payload.StudentNumber, payload.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "QR code not found or no longer valid")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up QR code")
	}
	if code.IsUsed {
		return nil, appErrors.Clone(appErrors.ErrAlreadyUsed, "QR code has already been used")
	}
	now := time.Now().UTC()
	if qr.IsExpired(code.ExpiresAt, now) {
		return nil, appErrors.Clone(appErrors.ErrExpired, "QR code has expired")
	}

	profile, err := s.students.FindByStudentNumber(ctx, payload.StudentNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student profile")
	}

	return &VerifyResult{
		QRCodeID: code.ID,
		Student: models.GateStudentInfo{
			StudentNumber:     profile.StudentNumber,
			Name:              profile.FullName,
			Course:            profile.Course,
			Section:           profile.Section,
			Email:             profile.Email,
			Phone:             profile.Phone,
			ProfilePictureURL: profile.ProfilePictureURL,
			IsValidated:       profile.IsValidated,
		},
		ExpiresAt: code.ExpiresAt,
	}, nil
}

// Complete consumes a verified credential. Only OSA operators may complete a
// scan. When the operator reports the physical requirements incomplete, the
// credential stays live and only an audit entry is written.
func (s *ScanService) Complete(ctx context.Context, claims *models.JWTClaims, req CompleteRequest) (*CompleteResult, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleOSA {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only OSA staff may complete gate scans")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	res, err := s.limiter.Allow(ctx, "complete:"+claims.UserID, ratelimit.PerMinute(s.config.CompletePerMinute))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rate limiter unavailable")
	}
	if !res.Allowed {
		return nil, appErrors.WithDetails(appErrors.ErrRateLimited, "too many completions, slow down", res)
	}

	if !req.RequirementsComplete {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &claims.UserID,
			Action:     models.AuditActionScanIncomplete,
			Resource:   "qr_code",
			ResourceID: &req.QRCodeID,
		}); err != nil {
			s.logger.Warn("failed to write incomplete-scan audit log", zap.Error(err))
		}
		return &CompleteResult{
			StudentNumber: req.StudentNumber,
			Validated:     false,
			Message:       "requirements incomplete, QR code remains valid",
		}, nil
	}

	code, err := s.qrCodes.FindByID(ctx, req.QRCodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "QR code not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up QR code")
	}
	if code.StudentNumber != req.StudentNumber {
		return nil, appErrors.Clone(appErrors.ErrValidation, "QR code does not belong to that student")
	}
	if code.IsUsed {
		return nil, appErrors.Clone(appErrors.ErrAlreadyUsed, "QR code has already been used")
	}
	now := time.Now().UTC()
	if qr.IsExpired(code.ExpiresAt, now) {
		return nil, appErrors.Clone(appErrors.ErrExpired, "QR code has expired")
	}

	semester, err := s.settings.GetCurrentSemester(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current semester")
	}
	if semester == nil {
		return nil, appErrors.Clone(appErrors.ErrMisconfigured, "current semester has not been set")
	}

	if err := s.qrCodes.Complete(ctx, repository.CompleteParams{
		QRCodeID:      code.ID,
		StudentNumber: code.StudentNumber,
		Semester:      semester.Term,
		SchoolYear:    semester.SchoolYear,
		OperatorName:  claims.FullName,
		OperatorRole:  claims.Role,
		Now:           now,
	}); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyUsed, "QR code has already been used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete validation")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionScanComplete,
		Resource:   "qr_code",
		ResourceID: &req.QRCodeID,
	}); err != nil {
		s.logger.Warn("failed to write complete-scan audit log", zap.Error(err))
	}

	s.logger.Info("gate validation completed",
		zap.String("student_number", code.StudentNumber),
		zap.String("qr_code_id", code.ID),
		zap.String("operator", claims.UserID))
	return &CompleteResult{
		StudentNumber: code.StudentNumber,
		Validated:     true,
		Message:       "student validated for the semester",
	}, nil
}

// History returns the append-only validation trail for one student.
func (s *ScanService) History(ctx context.Context, claims *models.JWTClaims, studentNumber string) ([]models.ValidationHistoryEntry, error) {
	if err := requireReviewer(claims); err != nil {
		return nil, err
	}
	entries, err := s.qrCodes.HistoryByStudent(ctx, studentNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch validation history")
	}
	return entries, nil
}
