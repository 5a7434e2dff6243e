package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-idv-api/internal/models"
)

// OffenseRepository manages disciplinary records.
type OffenseRepository struct {
	db *sqlx.DB
}

// NewOffenseRepository constructs a new repository.
func NewOffenseRepository(db *sqlx.DB) *OffenseRepository {
	return &OffenseRepository{db: db}
}

const offenseColumns = `id, student_number, classification, catalog_number, title, description, sanction, sanction_level,
status, resolution_remarks, recorded_by, committed_at, recorded_at, resolved_at, resolved_by, reopened_at, reopened_by`

// Create inserts a new offense record.
func (r *OffenseRepository) Create(ctx context.Context, offense *models.Offense) error {
	if offense.ID == "" {
		offense.ID = uuid.NewString()
	}
	if offense.RecordedAt.IsZero() {
		offense.RecordedAt = time.Now().UTC()
	}
	query := `INSERT INTO offenses (
    id, student_number, classification, catalog_number, title, description, sanction, sanction_level,
    status, recorded_by, committed_at, recorded_at
) VALUES (
    :id, :student_number, :classification, :catalog_number, :title, :description, :sanction, :sanction_level,
    :status, :recorded_by, :committed_at, :recorded_at
)`
	if _, err := r.db.NamedExecContext(ctx, query, offense); err != nil {
		return fmt.Errorf("create offense: %w", err)
	}
	return nil
}

// FindByID returns one offense.
func (r *OffenseRepository) FindByID(ctx context.Context, id string) (*models.Offense, error) {
	var offense models.Offense
	query := fmt.Sprintf("SELECT %s FROM offenses WHERE id = $1", offenseColumns)
	if err := r.db.GetContext(ctx, &offense, query, id); err != nil {
		return nil, err
	}
	return &offense, nil
}

// ListByStudent returns all offenses for a student, newest first.
func (r *OffenseRepository) ListByStudent(ctx context.Context, studentNumber string) ([]models.Offense, error) {
	var offenses []models.Offense
	query := fmt.Sprintf("SELECT %s FROM offenses WHERE student_number = $1 ORDER BY recorded_at DESC", offenseColumns)
	if err := r.db.SelectContext(ctx, &offenses, query, studentNumber); err != nil {
		return nil, fmt.Errorf("list offenses: %w", err)
	}
	return offenses, nil
}

// ListActiveByStudent returns the offenses that block a validation request.
func (r *OffenseRepository) ListActiveByStudent(ctx context.Context, studentNumber string) ([]models.Offense, error) {
	var offenses []models.Offense
	query := fmt.Sprintf("SELECT %s FROM offenses WHERE student_number = $1 AND status = $2 ORDER BY recorded_at DESC", offenseColumns)
	if err := r.db.SelectContext(ctx, &offenses, query, studentNumber, models.OffenseActive); err != nil {
		return nil, fmt.Errorf("list active offenses: %w", err)
	}
	return offenses, nil
}

// Resolve closes an active offense with remarks.
func (r *OffenseRepository) Resolve(ctx context.Context, id, remarks, resolvedBy string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE offenses
SET status = $1, resolution_remarks = $2, resolved_by = $3, resolved_at = $4
WHERE id = $5 AND status = $6`,
		models.OffenseResolved, remarks, resolvedBy, at, id, models.OffenseActive)
	if err != nil {
		return fmt.Errorf("resolve offense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve offense: %w", err)
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

// Reopen reverts a resolved offense to active.
func (r *OffenseRepository) Reopen(ctx context.Context, id, reopenedBy string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE offenses
SET status = $1, reopened_by = $2, reopened_at = $3
WHERE id = $4 AND status = $5`,
		models.OffenseActive, reopenedBy, at, id, models.OffenseResolved)
	if err != nil {
		return fmt.Errorf("reopen offense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reopen offense: %w", err)
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}
