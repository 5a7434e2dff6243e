package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/internal/repository"
	appErrors "github.com/noah-isme/campus-idv-api/pkg/errors"
	"github.com/noah-isme/campus-idv-api/pkg/export"
	"github.com/noah-isme/campus-idv-api/pkg/mail"
	"github.com/noah-isme/campus-idv-api/pkg/qr"
	"github.com/noah-isme/campus-idv-api/pkg/ratelimit"
	"github.com/noah-isme/campus-idv-api/pkg/storage"
)

type validationRequestRepository interface {
	Upsert(ctx context.Context, req *models.ValidationRequest) error
	FindByStudentNumber(ctx context.Context, studentNumber string) (*models.ValidationRequest, error)
	List(ctx context.Context, filter models.ValidationRequestFilter) ([]models.ValidationRequest, int, error)
	Reject(ctx context.Context, studentNumber, remarks, reviewer string, role models.UserRole, at time.Time) error
	AcceptPending(ctx context.Context, b repository.QRIssueBundle) error
	ReissueAccepted(ctx context.Context, b repository.QRIssueBundle) error
}

type offenseReader interface {
	ListActiveByStudent(ctx context.Context, studentNumber string) ([]models.Offense, error)
}

type settingsReader interface {
	GetValidationPeriod(ctx context.Context) (*models.ValidationPeriod, error)
	GetCurrentSemester(ctx context.Context) (*models.Semester, error)
}

type studentProfileStore interface {
	Upsert(ctx context.Context, profile *models.StudentProfile) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type mailEnqueuer interface {
	Enqueue(id string) error
}

// SubmitValidationRequest is the student submission payload. Image fields must
// point at objects inside the configured upload store.
type SubmitValidationRequest struct {
	StudentNumber string `json:"student_number" validate:"required"`
	StudentName   string `json:"student_name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	College       string `json:"college" validate:"required"`
	Course        string `json:"course" validate:"required"`
	Section       string `json:"section" validate:"required"`
	YearLevel     string `json:"year_level" validate:"required"`
	CORURL        string `json:"cor_url" validate:"required"`
	IDPhotoURL    string `json:"id_photo_url" validate:"required"`
	FaceFrontURL  string `json:"face_front_url" validate:"required"`
	FaceLeftURL   string `json:"face_left_url" validate:"required"`
	FaceRightURL  string `json:"face_right_url" validate:"required"`
}

// DecideRequest is the reviewer verdict payload. Remarks are mandatory when
// rejecting; ExpirationDays only applies to accepts and falls back to the
// configured default when zero.
type DecideRequest struct {
	Decision       models.Decision `json:"decision" validate:"required,oneof=accept reject"`
	Remarks        string          `json:"remarks"`
	ExpirationDays int             `json:"expiration_days" validate:"omitempty,min=1,max=30"`
}

// DecideResult reports the request state after a verdict or a QR resend.
type DecideResult struct {
	StudentNumber string                  `json:"student_number"`
	Status        models.ValidationStatus `json:"status"`
	QRCodeID      *string                 `json:"qr_code_id,omitempty"`
	ExpiresAt     *time.Time              `json:"expires_at,omitempty"`
}

// ValidationServiceConfig carries the QR issuance and throttling knobs.
type ValidationServiceConfig struct {
	DefaultExpiryDays int
	MinExpiryDays     int
	MaxExpiryDays     int
	QRImageSize       int
	SubmitPerHour     int
	AcceptPerMinute   int
	ResendPerHour     int
}

// ValidationService owns the validation-request lifecycle from submission
// through the reviewer verdict and QR issuance.
type ValidationService struct {
	requests  validationRequestRepository
	offenses  offenseReader
	settings  settingsReader
	students  studentProfileStore
	audit     auditLogger
	limiter   rateLimiter
	urls      *storage.URLValidator
	mailQueue mailEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
	config    ValidationServiceConfig
}

// NewValidationService constructs a ValidationService instance.
func NewValidationService(
	requests validationRequestRepository,
	offenses offenseReader,
	settings settingsReader,
	students studentProfileStore,
	audit auditLogger,
	limiter rateLimiter,
	urls *storage.URLValidator,
	mailQueue mailEnqueuer,
	validate *validator.Validate,
	logger *zap.Logger,
	config ValidationServiceConfig,
) *ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultExpiryDays <= 0 {
		config.DefaultExpiryDays = 7
	}
	if config.MinExpiryDays <= 0 {
		config.MinExpiryDays = 1
	}
	if config.MaxExpiryDays <= 0 {
		config.MaxExpiryDays = 30
	}
	if config.SubmitPerHour <= 0 {
		config.SubmitPerHour = 3
	}
	if config.AcceptPerMinute <= 0 {
		config.AcceptPerMinute = 10
	}
	if config.ResendPerHour <= 0 {
		config.ResendPerHour = 20
	}
	return &ValidationService{
		requests:  requests,
		offenses:  offenses,
		settings:  settings,
		students:  students,
		audit:     audit,
		limiter:   limiter,
		urls:      urls,
		mailQueue: mailQueue,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Submit files a new validation request for the authenticated student. Gates
// are checked in a fixed order so callers see the same failure regardless of
// how many gates would trip: identity, throttle, period, prior acceptance,
// payload shape, then disciplinary standing.
func (s *ValidationService) Submit(ctx context.Context, claims *models.JWTClaims, req SubmitValidationRequest) (*models.ValidationRequest, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleStudent || claims.StudentNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may submit validation requests")
	}
	if req.StudentNumber != claims.StudentNumber {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token is bound to a different student")
	}

	res, err := s.limiter.Allow(ctx, "submit:"+claims.StudentNumber, ratelimit.PerHour(s.config.SubmitPerHour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rate limiter unavailable")
	}
	if !res.Allowed {
		return nil, appErrors.WithDetails(appErrors.ErrRateLimited, "too many submissions, try again later", res)
	}

	now := time.Now().UTC()
	period, err := s.settings.GetValidationPeriod(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load validation period")
	}
	if !period.Configured() {
		return nil, appErrors.Clone(appErrors.ErrMisconfigured, "validation period has not been configured")
	}
	if !period.ActiveAt(now) {
		return nil, appErrors.Clone(appErrors.ErrPeriodClosed, "")
	}
	semester, err := s.settings.GetCurrentSemester(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current semester")
	}
	if semester == nil {
		return nil, appErrors.Clone(appErrors.ErrMisconfigured, "current semester has not been set")
	}

	existing, err := s.requests.FindByStudentNumber(ctx, claims.StudentNumber)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing request")
	}
	if existing != nil && existing.Status == models.ValidationAccepted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyValidated, "an accepted validation request already exists")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if err := s.checkImageURLs(req); err != nil {
		return nil, err
	}

	active, err := s.offenses.ListActiveByStudent(ctx, claims.StudentNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check offenses")
	}
	if len(active) > 0 {
		blocking := make([]models.BlockingOffense, 0, len(active))
		for i := range active {
			blocking = append(blocking, active[i].Blocking())
		}
		return nil, appErrors.WithDetails(appErrors.ErrOffensesActive, "resolve your active offenses before requesting validation", blocking)
	}

	record := &models.ValidationRequest{
		StudentNumber: req.StudentNumber,
		StudentID:     claims.UserID,
		StudentName:   req.StudentName,
		Email:         req.Email,
		Phone:         req.Phone,
		College:       req.College,
		Course:        req.Course,
		Section:       req.Section,
		YearLevel:     req.YearLevel,
		CORURL:        req.CORURL,
		IDPhotoURL:    req.IDPhotoURL,
		FaceFrontURL:  req.FaceFrontURL,
		FaceLeftURL:   req.FaceLeftURL,
		FaceRightURL:  req.FaceRightURL,
		Status:        models.ValidationPending,
		Semester:      semester.Term,
		SchoolYear:    semester.SchoolYear,
		SubmittedAt:   now,
	}
	if err := s.requests.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save validation request")
	}

	// Keep the gate directory in step with what the student declared. The
	// upsert preserves any validation flags already on the profile.
	profile := &models.StudentProfile{
		StudentNumber: req.StudentNumber,
		UserID:        &claims.UserID,
		FullName:      req.StudentName,
		Email:         req.Email,
		Phone:         req.Phone,
		College:       req.College,
		Course:        req.Course,
		Section:       req.Section,
		YearLevel:     req.YearLevel,
	}
	if err := s.students.Upsert(ctx, profile); err != nil {
		s.logger.Warn("failed to refresh student profile", zap.String("student_number", req.StudentNumber), zap.Error(err))
	}

	s.logger.Info("validation request submitted",
		zap.String("student_number", req.StudentNumber),
		zap.String("school_year", semester.SchoolYear),
		zap.String("term", semester.Term))
	return record, nil
}

// Status returns the authenticated student's own request.
func (s *ValidationService) Status(ctx context.Context, claims *models.JWTClaims) (*models.ValidationRequest, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleStudent || claims.StudentNumber == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	req, err := s.requests.FindByStudentNumber(ctx, claims.StudentNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no validation request on file")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch validation request")
	}
	return req, nil
}

// List returns validation requests for the review queue.
func (s *ValidationService) List(ctx context.Context, claims *models.JWTClaims, filter models.ValidationRequestFilter) ([]models.ValidationRequest, *models.Pagination, error) {
	if err := requireReviewer(claims); err != nil {
		return nil, nil, err
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list validation requests")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// ExportResult is a rendered roster download.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportRoster renders the review table as a CSV or PDF download.
func (s *ValidationService) ExportRoster(ctx context.Context, claims *models.JWTClaims, filter models.ValidationRequestFilter, format export.Format) (*ExportResult, error) {
	if err := requireReviewer(claims); err != nil {
		return nil, err
	}
	filter.Page = 1
	filter.PageSize = 200
	items, _, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export validation requests")
	}

	table := export.Table{
		Title:   "Validation Requests",
		Columns: []string{"Student No.", "Name", "Course", "Section", "Year", "Status", "Semester", "School Year", "Submitted"},
		Rows:    make([][]string, 0, len(items)),
	}
	for _, it := range items {
		table.Rows = append(table.Rows, []string{
			it.StudentNumber, it.StudentName, it.Course, it.Section, it.YearLevel,
			string(it.Status), it.Semester, it.SchoolYear, it.SubmittedAt.Format("2006-01-02 15:04"),
		})
	}

	content, err := export.Render(format, table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:   &claims.UserID,
		Action:   models.AuditActionExportRoster,
		Resource: "validation_request",
	}); err != nil {
		s.logger.Warn("failed to write export audit log", zap.Error(err))
	}

	return &ExportResult{
		FileName:    fmt.Sprintf("validation-requests-%s.%s", time.Now().UTC().Format("20060102"), format.Extension()),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

// Decide records a reviewer verdict on a pending request. Accepting issues the
// QR credential, queues the acceptance email, and writes the audit entry in
// one transaction; a concurrent second verdict observes Conflict.
func (s *ValidationService) Decide(ctx context.Context, claims *models.JWTClaims, studentNumber string, req DecideRequest) (*DecideResult, error) {
	if err := requireReviewer(claims); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	target, err := s.requests.FindByStudentNumber(ctx, studentNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "validation request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch validation request")
	}
	if target.Status != models.ValidationPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been reviewed")
	}

	if req.Decision == models.DecisionReject {
		return s.reject(ctx, claims, target, req.Remarks)
	}
	return s.accept(ctx, claims, target, req.ExpirationDays)
}

func (s *ValidationService) reject(ctx context.Context, claims *models.JWTClaims, target *models.ValidationRequest, remarks string) (*DecideResult, error) {
	remarks = strings.TrimSpace(remarks)
	if remarks == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remarks are required when rejecting a request")
	}

	now := time.Now().UTC()
	if err := s.requests.Reject(ctx, target.StudentNumber, remarks, claims.FullName, claims.Role, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject request")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionRejectRequest,
		Resource:   "validation_request",
		ResourceID: &target.StudentNumber,
	}); err != nil {
		s.logger.Warn("failed to write reject audit log", zap.Error(err))
	}

	s.logger.Info("validation request rejected",
		zap.String("student_number", target.StudentNumber),
		zap.String("reviewed_by", claims.UserID))
	return &DecideResult{StudentNumber: target.StudentNumber, Status: models.ValidationRejected}, nil
}

func (s *ValidationService) accept(ctx context.Context, claims *models.JWTClaims, target *models.ValidationRequest, expirationDays int) (*DecideResult, error) {
	res, err := s.limiter.Allow(ctx, "accept:"+claims.UserID, ratelimit.PerMinute(s.config.AcceptPerMinute))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rate limiter unavailable")
	}
	if !res.Allowed {
		return nil, appErrors.WithDetails(appErrors.ErrRateLimited, "too many acceptances, slow down", res)
	}

	now := time.Now().UTC()
	bundle, err := s.buildIssueBundle(claims, target, expirationDays, now, models.AuditActionAcceptRequest)
	if err != nil {
		return nil, err
	}
	if err := s.requests.AcceptPending(ctx, bundle); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been reviewed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept request")
	}
	s.enqueueMail(bundle.Email.ID)

	s.logger.Info("validation request accepted",
		zap.String("student_number", target.StudentNumber),
		zap.String("qr_code_id", bundle.QR.ID),
		zap.Time("expires_at", bundle.QR.ExpiresAt))
	return &DecideResult{
		StudentNumber: target.StudentNumber,
		Status:        models.ValidationAccepted,
		QRCodeID:      &bundle.QR.ID,
		ExpiresAt:     &bundle.QR.ExpiresAt,
	}, nil
}

// ResendQR reissues the credential for an already-accepted request, replacing
// any live QR. Admin only. expirationDays <= 0 selects the default window.
func (s *ValidationService) ResendQR(ctx context.Context, claims *models.JWTClaims, studentNumber string, expirationDays int) (*DecideResult, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may resend QR codes")
	}

	res, err := s.limiter.Allow(ctx, "resend:"+claims.UserID, ratelimit.PerHour(s.config.ResendPerHour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "rate limiter unavailable")
	}
	if !res.Allowed {
		return nil, appErrors.WithDetails(appErrors.ErrRateLimited, "too many resends, try again later", res)
	}

	target, err := s.requests.FindByStudentNumber(ctx, studentNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "validation request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch validation request")
	}
	if target.Status != models.ValidationAccepted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only accepted requests can have their QR resent")
	}

	now := time.Now().UTC()
	bundle, err := s.buildIssueBundle(claims, target, expirationDays, now, models.AuditActionResendQR)
	if err != nil {
		return nil, err
	}
	if err := s.requests.ReissueAccepted(ctx, bundle); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer accepted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reissue QR code")
	}
	s.enqueueMail(bundle.Email.ID)

	s.logger.Info("qr code resent",
		zap.String("student_number", target.StudentNumber),
		zap.String("qr_code_id", bundle.QR.ID))
	return &DecideResult{
		StudentNumber: target.StudentNumber,
		Status:        models.ValidationAccepted,
		QRCodeID:      &bundle.QR.ID,
		ExpiresAt:     &bundle.QR.ExpiresAt,
	}, nil
}

// buildIssueBundle renders a fresh credential plus the email and audit entry
// that must land in the same transaction.
func (s *ValidationService) buildIssueBundle(claims *models.JWTClaims, target *models.ValidationRequest, expirationDays int, now time.Time, auditAction string) (repository.QRIssueBundle, error) {
	if expirationDays <= 0 {
		expirationDays = s.config.DefaultExpiryDays
	}
	expiresAt := qr.ExpiryFrom(now, expirationDays, s.config.MinExpiryDays, s.config.MaxExpiryDays)

	token := qr.NewToken()
	payload := qr.NewPayload(target.StudentNumber, token)
	png, err := qr.ImagePNG(payload, s.config.QRImageSize)
	if err != nil {
		return repository.QRIssueBundle{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render QR image")
	}

	qrCode := &models.QRCode{
		ID:            uuid.NewString(),
		StudentNumber: target.StudentNumber,
		Token:         token,
		ExpiresAt:     expiresAt,
		StudentName:   target.StudentName,
		Course:        target.Course,
		Section:       target.Section,
		CreatedAt:     now,
	}
	subject, body := acceptanceEmail(target.StudentName, target.StudentNumber, expiresAt)
	email := mail.Message{
		ID:             uuid.NewString(),
		Recipient:      target.Email,
		RecipientName:  target.StudentName,
		Subject:        subject,
		HTMLBody:       body,
		AttachmentName: fmt.Sprintf("gate-pass-%s.png", target.StudentNumber),
		AttachmentB64:  base64.StdEncoding.EncodeToString(png),
	}
	audit := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     auditAction,
		Resource:   "validation_request",
		ResourceID: &target.StudentNumber,
	}
	return repository.QRIssueBundle{
		StudentNumber: target.StudentNumber,
		QR:            qrCode,
		Email:         email,
		Audit:         audit,
		Reviewer:      claims.FullName,
		ReviewerRole:  claims.Role,
		Now:           now,
	}, nil
}

func (s *ValidationService) enqueueMail(id string) {
	if s.mailQueue == nil {
		return
	}
	// Delivery failures are retried by the dispatcher's recovery sweep; the
	// outbox row was committed with the acceptance.
	if err := s.mailQueue.Enqueue(id); err != nil {
		s.logger.Warn("failed to enqueue acceptance email", zap.String("outbox_id", id), zap.Error(err))
	}
}

func (s *ValidationService) checkImageURLs(req SubmitValidationRequest) error {
	images := map[string]string{
		"cor_url":        req.CORURL,
		"id_photo_url":   req.IDPhotoURL,
		"face_front_url": req.FaceFrontURL,
		"face_left_url":  req.FaceLeftURL,
		"face_right_url": req.FaceRightURL,
	}
	for field, raw := range images {
		if !s.urls.Valid(raw) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must point at the campus upload store", field))
		}
	}
	return nil
}

func requireReviewer(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleOSA {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return nil
}
