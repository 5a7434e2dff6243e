package models

import "time"

// StudentProfile is the directory record a gate operator cross-checks against
// the physical ID. IsValidated is semester-scoped: starting a new semester
// resets it for every student.
type StudentProfile struct {
	StudentNumber     string     `db:"student_number" json:"student_number"`
	UserID            *string    `db:"user_id" json:"user_id,omitempty"`
	FullName          string     `db:"full_name" json:"full_name"`
	Email             string     `db:"email" json:"email"`
	Phone             string     `db:"phone" json:"phone"`
	College           string     `db:"college" json:"college"`
	Course            string     `db:"course" json:"course"`
	Section           string     `db:"section" json:"section"`
	YearLevel         string     `db:"year_level" json:"year_level"`
	ProfilePictureURL *string    `db:"profile_picture_url" json:"profile_picture_url,omitempty"`
	IsValidated       bool       `db:"is_validated" json:"is_validated"`
	ValidatedAt       *time.Time `db:"validated_at" json:"validated_at,omitempty"`
	ValidatedBy       *string    `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedByRole   *string    `db:"validated_by_role" json:"validated_by_role,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ValidationHistoryEntry is one append-only record of a completed gate
// validation. Entries are never edited or deleted.
type ValidationHistoryEntry struct {
	ID              string    `db:"id" json:"id"`
	StudentNumber   string    `db:"student_number" json:"student_number"`
	QRCodeID        string    `db:"qr_code_id" json:"qr_code_id"`
	Semester        string    `db:"semester" json:"semester"`
	SchoolYear      string    `db:"school_year" json:"school_year"`
	Status          string    `db:"status" json:"status"`
	ValidatedBy     string    `db:"validated_by" json:"validated_by"`
	ValidatedByRole string    `db:"validated_by_role" json:"validated_by_role"`
	Method          string    `db:"method" json:"method"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// GateStudentInfo is the snapshot shown to the scanner operator for the
// visual cross-check against the physical ID and COR.
type GateStudentInfo struct {
	StudentNumber     string  `json:"student_number"`
	Name              string  `json:"name"`
	Course            string  `json:"course"`
	Section           string  `json:"section"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`
	IsValidated       bool    `json:"is_validated"`
}
