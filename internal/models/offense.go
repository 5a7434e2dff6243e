package models

import "time"

// OffenseClassification distinguishes handbook chapters.
type OffenseClassification string

const (
	OffenseMajor OffenseClassification = "major"
	OffenseMinor OffenseClassification = "minor"
)

// OffenseStatus is the toggle the validation gate consults: any active offense
// bars the student from submitting a new validation request.
type OffenseStatus string

const (
	OffenseActive   OffenseStatus = "active"
	OffenseResolved OffenseStatus = "resolved"
)

// SanctionLevel selects which occurrence sanction applies.
type SanctionLevel string

const (
	SanctionFirst  SanctionLevel = "first"
	SanctionSecond SanctionLevel = "second"
	SanctionThird  SanctionLevel = "third"
)

// Offense is a disciplinary record filed by an OSA actor.
type Offense struct {
	ID                string                `db:"id" json:"id"`
	StudentNumber     string                `db:"student_number" json:"student_number"`
	Classification    OffenseClassification `db:"classification" json:"classification"`
	CatalogNumber     string                `db:"catalog_number" json:"catalog_number"`
	Title             string                `db:"title" json:"title"`
	Description       string                `db:"description" json:"description"`
	Sanction          string                `db:"sanction" json:"sanction"`
	SanctionLevel     SanctionLevel         `db:"sanction_level" json:"sanction_level"`
	Status            OffenseStatus         `db:"status" json:"status"`
	ResolutionRemarks *string               `db:"resolution_remarks" json:"resolution_remarks,omitempty"`
	RecordedBy        string                `db:"recorded_by" json:"recorded_by"`
	CommittedAt       time.Time             `db:"committed_at" json:"committed_at"`
	RecordedAt        time.Time             `db:"recorded_at" json:"recorded_at"`
	ResolvedAt        *time.Time            `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy        *string               `db:"resolved_by" json:"resolved_by,omitempty"`
	ReopenedAt        *time.Time            `db:"reopened_at" json:"reopened_at,omitempty"`
	ReopenedBy        *string               `db:"reopened_by" json:"reopened_by,omitempty"`
}

// BlockingOffense is the caller-facing summary surfaced when active offenses
// reject a submission.
type BlockingOffense struct {
	ID             string                `json:"id"`
	Classification OffenseClassification `json:"classification"`
	Title          string                `json:"title"`
	Sanction       string                `json:"sanction"`
}

// Blocking trims an offense down to what a rejected submitter may see.
func (o *Offense) Blocking() BlockingOffense {
	return BlockingOffense{
		ID:             o.ID,
		Classification: o.Classification,
		Title:          o.Title,
		Sanction:       o.Sanction,
	}
}
