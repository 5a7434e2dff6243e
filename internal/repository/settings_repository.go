package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-idv-api/internal/models"
)

// ErrDuplicateSemester is returned when a school-year/term combination was
// already started once.
var ErrDuplicateSemester = errors.New("semester already exists")

// SettingsRepository manages the singleton configuration rows: validation
// period and current semester.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a new repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetValidationPeriod returns the configured period, or nil when the row has
// never been written.
func (r *SettingsRepository) GetValidationPeriod(ctx context.Context) (*models.ValidationPeriod, error) {
	var period models.ValidationPeriod
	query := "SELECT starts_at, ends_at, updated_by, updated_at FROM validation_periods WHERE id = 1"
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get validation period: %w", err)
	}
	return &period, nil
}

// SetValidationPeriod upserts the singleton period row.
func (r *SettingsRepository) SetValidationPeriod(ctx context.Context, startsAt, endsAt time.Time, updatedBy string) error {
	query := `INSERT INTO validation_periods (id, starts_at, ends_at, updated_by, updated_at)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at,
    updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, startsAt, endsAt, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("set validation period: %w", err)
	}
	return nil
}

// GetCurrentSemester returns the current semester, or nil when none has been
// started yet.
func (r *SettingsRepository) GetCurrentSemester(ctx context.Context) (*models.Semester, error) {
	var sem models.Semester
	query := "SELECT school_year, term, started_at, started_by FROM semesters WHERE id = 1"
	if err := r.db.GetContext(ctx, &sem, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get current semester: %w", err)
	}
	return &sem, nil
}

// StartSemester switches the process-wide semester in one transaction:
// closes the outgoing log entry, writes the new singleton, appends the log
// row, and resets every student's semester-scoped validation flag.
func (r *SettingsRepository) StartSemester(ctx context.Context, schoolYear, term, startedBy string, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin semester tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists bool
	if err := tx.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM semester_log WHERE school_year = $1 AND term = $2)", schoolYear, term); err != nil {
		return fmt.Errorf("check semester log: %w", err)
	}
	if exists {
		return ErrDuplicateSemester
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE semester_log SET ended_at = $1 WHERE ended_at IS NULL", at); err != nil {
		return fmt.Errorf("close outgoing semester: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO semesters (id, school_year, term, started_at, started_by)
VALUES (1, $1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET school_year = EXCLUDED.school_year, term = EXCLUDED.term,
    started_at = EXCLUDED.started_at, started_by = EXCLUDED.started_by`,
		schoolYear, term, at, startedBy); err != nil {
		return fmt.Errorf("set current semester: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO semester_log (id, school_year, term, started_at) VALUES ($1, $2, $3, $4)",
		uuid.NewString(), schoolYear, term, at); err != nil {
		return fmt.Errorf("append semester log: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE student_profiles SET is_validated = FALSE, validated_at = NULL, validated_by = NULL, validated_by_role = NULL, updated_at = $1", at); err != nil {
		return fmt.Errorf("reset student validation flags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit semester tx: %w", err)
	}
	return nil
}
