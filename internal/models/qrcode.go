package models

import "time"

// QRCode is a gate-pass credential issued when a request is accepted. At most
// one per student may be valid at a time; issuing a new one invalidates any
// prior unconsumed credential.
type QRCode struct {
	ID                string     `db:"id" json:"id"`
	StudentNumber     string     `db:"student_number" json:"student_number"`
	Token             string     `db:"token" json:"-"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	IsUsed            bool       `db:"is_used" json:"is_used"`
	UsedAt            *time.Time `db:"used_at" json:"used_at,omitempty"`
	UsedBy            *string    `db:"used_by" json:"used_by,omitempty"`
	UsedByRole        *string    `db:"used_by_role" json:"used_by_role,omitempty"`
	InvalidatedAt     *time.Time `db:"invalidated_at" json:"invalidated_at,omitempty"`
	InvalidatedBy     *string    `db:"invalidated_by" json:"invalidated_by,omitempty"`
	InvalidatedReason *string    `db:"invalidated_reason" json:"invalidated_reason,omitempty"`
	StudentName       string     `db:"student_name" json:"student_name"`
	Course            string     `db:"course" json:"course"`
	Section           string     `db:"section" json:"section"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Valid reports whether the credential can still be consumed at the gate.
func (q *QRCode) Valid(now time.Time) bool {
	return !q.IsUsed && q.InvalidatedAt == nil && now.Before(q.ExpiresAt)
}
