package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/pkg/mail"
)

// ErrStaleStatus is returned when a conditional status transition matched no
// row: the request was finalized (or reissued) by a concurrent actor first.
var ErrStaleStatus = errors.New("request not in expected status")

// ValidationRequestRepository manages validation requests and the multi-table
// transactions that keep requests, QR codes and the email outbox consistent.
type ValidationRequestRepository struct {
	db *sqlx.DB
}

// NewValidationRequestRepository constructs a new repository.
func NewValidationRequestRepository(db *sqlx.DB) *ValidationRequestRepository {
	return &ValidationRequestRepository{db: db}
}

// Upsert writes a request keyed by student number. Merge-on-write is
// deliberate: a resubmission after rejection overwrites the prior record
// rather than creating a duplicate.
func (r *ValidationRequestRepository) Upsert(ctx context.Context, req *models.ValidationRequest) error {
	query := `INSERT INTO validation_requests (
    student_number, student_id, student_name, email, phone, college, course, section, year_level,
    cor_url, id_photo_url, face_front_url, face_left_url, face_right_url,
    status, reject_remarks, semester, school_year, submitted_at
) VALUES (
    :student_number, :student_id, :student_name, :email, :phone, :college, :course, :section, :year_level,
    :cor_url, :id_photo_url, :face_front_url, :face_left_url, :face_right_url,
    :status, :reject_remarks, :semester, :school_year, :submitted_at
)
ON CONFLICT (student_number) DO UPDATE SET
    student_id = EXCLUDED.student_id,
    student_name = EXCLUDED.student_name,
    email = EXCLUDED.email,
    phone = EXCLUDED.phone,
    college = EXCLUDED.college,
    course = EXCLUDED.course,
    section = EXCLUDED.section,
    year_level = EXCLUDED.year_level,
    cor_url = EXCLUDED.cor_url,
    id_photo_url = EXCLUDED.id_photo_url,
    face_front_url = EXCLUDED.face_front_url,
    face_left_url = EXCLUDED.face_left_url,
    face_right_url = EXCLUDED.face_right_url,
    status = EXCLUDED.status,
    reject_remarks = NULL,
    reviewed_by = NULL,
    reviewed_by_role = NULL,
    reviewed_at = NULL,
    semester = EXCLUDED.semester,
    school_year = EXCLUDED.school_year,
    qr_code_id = NULL,
    expires_at = NULL,
    submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("upsert validation request: %w", err)
	}
	return nil
}

const requestColumns = `student_number, student_id, student_name, email, phone, college, course, section, year_level,
cor_url, id_photo_url, face_front_url, face_left_url, face_right_url,
status, reject_remarks, reviewed_by, reviewed_by_role, reviewed_at,
semester, school_year, qr_code_id, expires_at, submitted_at`

// FindByStudentNumber returns the student's current request.
func (r *ValidationRequestRepository) FindByStudentNumber(ctx context.Context, studentNumber string) (*models.ValidationRequest, error) {
	var req models.ValidationRequest
	query := fmt.Sprintf("SELECT %s FROM validation_requests WHERE student_number = $1", requestColumns)
	if err := r.db.GetContext(ctx, &req, query, studentNumber); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests for the admin review table.
func (r *ValidationRequestRepository) List(ctx context.Context, filter models.ValidationRequestFilter) ([]models.ValidationRequest, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(student_number ILIKE $%d OR student_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM validation_requests WHERE %s ORDER BY submitted_at DESC LIMIT %d OFFSET %d",
		requestColumns, whereClause, size, offset)
	var requests []models.ValidationRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list validation requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM validation_requests WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count validation requests: %w", err)
	}
	return requests, total, nil
}

// Reject finalizes a pending request with remarks. The status predicate makes
// concurrent decisions race-safe: the loser matches no row.
func (r *ValidationRequestRepository) Reject(ctx context.Context, studentNumber, remarks, reviewer string, role models.UserRole, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE validation_requests
SET status = $1, reject_remarks = $2, reviewed_by = $3, reviewed_by_role = $4, reviewed_at = $5
WHERE student_number = $6 AND status = $7`,
		models.ValidationRejected, remarks, reviewer, role, at, studentNumber, models.ValidationPending)
	if err != nil {
		return fmt.Errorf("reject validation request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reject validation request: %w", err)
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

// QRIssueBundle carries everything one accept or resend must commit together.
// Partial application would violate the one-valid-QR invariant, so all writes
// share a single transaction.
type QRIssueBundle struct {
	StudentNumber string
	QR            *models.QRCode
	Email         mail.Message
	Audit         *models.AuditLog
	Reviewer      string
	ReviewerRole  models.UserRole
	Now           time.Time
}

// AcceptPending flips a pending request to accepted and issues its QR
// credential atomically. Returns ErrStaleStatus when the request is no longer
// pending, leaving no partial state behind.
func (r *ValidationRequestRepository) AcceptPending(ctx context.Context, b QRIssueBundle) error {
	return r.issue(ctx, b, models.ValidationPending)
}

// ReissueAccepted swaps the QR credential of an already-accepted request
// atomically, invalidating the prior one.
func (r *ValidationRequestRepository) ReissueAccepted(ctx context.Context, b QRIssueBundle) error {
	return r.issue(ctx, b, models.ValidationAccepted)
}

func (r *ValidationRequestRepository) issue(ctx context.Context, b QRIssueBundle, expected models.ValidationStatus) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issue tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE validation_requests
SET status = $1, reviewed_by = $2, reviewed_by_role = $3, reviewed_at = $4, reject_remarks = NULL, qr_code_id = $5, expires_at = $6
WHERE student_number = $7 AND status = $8`,
		models.ValidationAccepted, b.Reviewer, b.ReviewerRole, b.Now, b.QR.ID, b.QR.ExpiresAt, b.StudentNumber, expected)
	if err != nil {
		return fmt.Errorf("transition validation request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition validation request: %w", err)
	}
	if n == 0 {
		return ErrStaleStatus
	}

	// Invalidate any prior live credential so at most one stays valid.
	if _, err := tx.ExecContext(ctx, `UPDATE qr_codes
SET invalidated_at = $1, invalidated_by = $2, invalidated_reason = $3
WHERE student_number = $4 AND is_used = FALSE AND invalidated_at IS NULL`,
		b.Now, b.Reviewer, "superseded by reissue", b.StudentNumber); err != nil {
		return fmt.Errorf("invalidate prior qr codes: %w", err)
	}

	if _, err := tx.NamedExecContext(ctx, `INSERT INTO qr_codes (
    id, student_number, token, expires_at, is_used, student_name, course, section, created_at
) VALUES (:id, :student_number, :token, :expires_at, :is_used, :student_name, :course, :section, :created_at)`, b.QR); err != nil {
		return fmt.Errorf("insert qr code: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO email_outbox (
    id, recipient, recipient_name, subject, html_body, attachment_name, attachment_b64, status, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, 'queued', $8)`,
		b.Email.ID, b.Email.Recipient, b.Email.RecipientName, b.Email.Subject, b.Email.HTMLBody,
		b.Email.AttachmentName, b.Email.AttachmentB64, b.Now); err != nil {
		return fmt.Errorf("insert outbox email: %w", err)
	}

	if b.Audit != nil {
		if b.Audit.ID == "" {
			b.Audit.ID = uuid.NewString()
		}
		if b.Audit.CreatedAt.IsZero() {
			b.Audit.CreatedAt = b.Now
		}
		if _, err := tx.NamedExecContext(ctx, `INSERT INTO audit_logs (
    id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at
) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`, b.Audit); err != nil {
			return fmt.Errorf("insert audit log: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit issue tx: %w", err)
	}
	return nil
}
