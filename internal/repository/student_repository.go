package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-idv-api/internal/models"
)

// StudentRepository reads the student directory the gate operator checks
// against.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const profileColumns = `student_number, user_id, full_name, email, phone, college, course, section, year_level,
profile_picture_url, is_validated, validated_at, validated_by, validated_by_role, created_at, updated_at`

// FindByStudentNumber returns a student profile.
func (r *StudentRepository) FindByStudentNumber(ctx context.Context, studentNumber string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	query := fmt.Sprintf("SELECT %s FROM student_profiles WHERE student_number = $1", profileColumns)
	if err := r.db.GetContext(ctx, &profile, query, studentNumber); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Upsert writes a profile, refreshing contact and enrollment fields on
// resubmission while leaving the validation flags untouched.
func (r *StudentRepository) Upsert(ctx context.Context, profile *models.StudentProfile) error {
	query := `INSERT INTO student_profiles (
    student_number, user_id, full_name, email, phone, college, course, section, year_level, profile_picture_url
) VALUES (
    :student_number, :user_id, :full_name, :email, :phone, :college, :course, :section, :year_level, :profile_picture_url
)
ON CONFLICT (student_number) DO UPDATE SET
    full_name = EXCLUDED.full_name,
    email = EXCLUDED.email,
    phone = EXCLUDED.phone,
    college = EXCLUDED.college,
    course = EXCLUDED.course,
    section = EXCLUDED.section,
    year_level = EXCLUDED.year_level,
    updated_at = now()`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert student profile: %w", err)
	}
	return nil
}
