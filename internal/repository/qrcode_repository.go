package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-idv-api/internal/models"
)

// QRCodeRepository manages gate-pass credentials and the completion
// transaction that consumes them.
type QRCodeRepository struct {
	db *sqlx.DB
}

// NewQRCodeRepository constructs a new repository.
func NewQRCodeRepository(db *sqlx.DB) *QRCodeRepository {
	return &QRCodeRepository{db: db}
}

const qrColumns = `id, student_number, token, expires_at, is_used, used_at, used_by, used_by_role,
invalidated_at, invalidated_by, invalidated_reason, student_name, course, section, created_at`

// FindByStudentAndToken returns the credential matching a scanned payload.
// Superseded (invalidated) credentials are not returned: to the scanner they
// no longer exist.
func (r *QRCodeRepository) FindByStudentAndToken(ctx context.Context, studentNumber, token string) (*models.QRCode, error) {
	var qr models.QRCode
	query := fmt.Sprintf(`SELECT %s FROM qr_codes
WHERE student_number = $1 AND token = $2 AND invalidated_at IS NULL
ORDER BY created_at DESC LIMIT 1`, qrColumns)
	if err := r.db.GetContext(ctx, &qr, query, studentNumber, token); err != nil {
		return nil, err
	}
	return &qr, nil
}

// FindByID returns a credential by id.
func (r *QRCodeRepository) FindByID(ctx context.Context, id string) (*models.QRCode, error) {
	var qr models.QRCode
	query := fmt.Sprintf("SELECT %s FROM qr_codes WHERE id = $1", qrColumns)
	if err := r.db.GetContext(ctx, &qr, query, id); err != nil {
		return nil, err
	}
	return &qr, nil
}

// CompleteParams names the actors and scope of a gate completion.
type CompleteParams struct {
	QRCodeID      string
	StudentNumber string
	Semester      string
	SchoolYear    string
	OperatorName  string
	OperatorRole  models.UserRole
	Now           time.Time
}

// Complete consumes a credential: marks it used, flags the student profile as
// validated for the semester, and appends the audit-trail history entry. One
// transaction; the conditional update on is_used serializes concurrent scans
// so a replay observes ErrStaleStatus instead of double-crediting.
func (r *QRCodeRepository) Complete(ctx context.Context, p CompleteParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `UPDATE qr_codes
SET is_used = TRUE, used_at = $1, used_by = $2, used_by_role = $3
WHERE id = $4 AND student_number = $5 AND is_used = FALSE AND invalidated_at IS NULL`,
		p.Now, p.OperatorName, p.OperatorRole, p.QRCodeID, p.StudentNumber)
	if err != nil {
		return fmt.Errorf("consume qr code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume qr code: %w", err)
	}
	if n == 0 {
		return ErrStaleStatus
	}

	if _, err := tx.ExecContext(ctx, `UPDATE student_profiles
SET is_validated = TRUE, validated_at = $1, validated_by = $2, validated_by_role = $3, updated_at = $1
WHERE student_number = $4`,
		p.Now, p.OperatorName, p.OperatorRole, p.StudentNumber); err != nil {
		return fmt.Errorf("mark profile validated: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO validation_history (
    id, student_number, qr_code_id, semester, school_year, status, validated_by, validated_by_role, method, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.NewString(), p.StudentNumber, p.QRCodeID, p.Semester, p.SchoolYear,
		"validated", p.OperatorName, p.OperatorRole, "qr_scan", p.Now); err != nil {
		return fmt.Errorf("append validation history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}
	return nil
}

// HistoryByStudent returns the append-only validation history for a student.
func (r *QRCodeRepository) HistoryByStudent(ctx context.Context, studentNumber string) ([]models.ValidationHistoryEntry, error) {
	var entries []models.ValidationHistoryEntry
	query := `SELECT id, student_number, qr_code_id, semester, school_year, status, validated_by, validated_by_role, method, created_at
FROM validation_history WHERE student_number = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &entries, query, studentNumber); err != nil {
		return nil, fmt.Errorf("list validation history: %w", err)
	}
	return entries, nil
}
