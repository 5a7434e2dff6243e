package models

import "time"

// ValidationPeriod is the admin-configured window during which new validation
// requests are accepted. Stored as a singleton row; both bounds must be set
// before any submission can succeed.
type ValidationPeriod struct {
	StartsAt  *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt    *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Configured reports whether both bounds have been set.
func (p *ValidationPeriod) Configured() bool {
	return p != nil && p.StartsAt != nil && p.EndsAt != nil
}

// ActiveAt reports whether now falls inside the configured window.
func (p *ValidationPeriod) ActiveAt(now time.Time) bool {
	if !p.Configured() {
		return false
	}
	return !now.Before(*p.StartsAt) && !now.After(*p.EndsAt)
}

// PeriodStatus is the public shape students poll before submitting.
type PeriodStatus struct {
	IsActive bool       `json:"is_active"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
	Message  string     `json:"message"`
}

// Semester is the current academic term, snapshotted onto every submission so
// later term changes do not rewrite history.
type Semester struct {
	SchoolYear string    `db:"school_year" json:"school_year"`
	Term       string    `db:"term" json:"term"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	StartedBy  *string   `db:"started_by" json:"started_by,omitempty"`
}

// SemesterLogEntry is one row of the append-only semester history.
type SemesterLogEntry struct {
	ID         string     `db:"id" json:"id"`
	SchoolYear string     `db:"school_year" json:"school_year"`
	Term       string     `db:"term" json:"term"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	EndedAt    *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}
