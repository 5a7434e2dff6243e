package models

import "time"

// ValidationStatus is the lifecycle state of a validation request.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationAccepted ValidationStatus = "accepted"
	ValidationRejected ValidationStatus = "rejected"
)

// Decision is an admin/OSA verdict on a pending request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ValidationRequest is a student's ID-validation request. Keyed by student
// number: a resubmission after rejection overwrites the previous record
// instead of accumulating duplicates.
type ValidationRequest struct {
	StudentNumber  string           `db:"student_number" json:"student_number"`
	StudentID      string           `db:"student_id" json:"student_id"`
	StudentName    string           `db:"student_name" json:"student_name"`
	Email          string           `db:"email" json:"email"`
	Phone          string           `db:"phone" json:"phone,omitempty"`
	College        string           `db:"college" json:"college"`
	Course         string           `db:"course" json:"course"`
	Section        string           `db:"section" json:"section"`
	YearLevel      string           `db:"year_level" json:"year_level"`
	CORURL         string           `db:"cor_url" json:"cor_url"`
	IDPhotoURL     string           `db:"id_photo_url" json:"id_photo_url"`
	FaceFrontURL   string           `db:"face_front_url" json:"face_front_url"`
	FaceLeftURL    string           `db:"face_left_url" json:"face_left_url"`
	FaceRightURL   string           `db:"face_right_url" json:"face_right_url"`
	Status         ValidationStatus `db:"status" json:"status"`
	RejectRemarks  *string          `db:"reject_remarks" json:"reject_remarks,omitempty"`
	ReviewedBy     *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedByRole *string          `db:"reviewed_by_role" json:"reviewed_by_role,omitempty"`
	ReviewedAt     *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Semester       string           `db:"semester" json:"semester"`
	SchoolYear     string           `db:"school_year" json:"school_year"`
	QRCodeID       *string          `db:"qr_code_id" json:"qr_code_id,omitempty"`
	ExpiresAt      *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	SubmittedAt    time.Time        `db:"submitted_at" json:"submitted_at"`
}

// ValidationRequestFilter narrows the admin review listing.
type ValidationRequestFilter struct {
	Status   *ValidationStatus
	Search   string
	Page     int
	PageSize int
}
