package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-idv-api/internal/models"
	"github.com/noah-isme/campus-idv-api/pkg/mail"
)

func newValidationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestValidationRequestRepositoryUpsertAndFind(t *testing.T) {
	db, mock, cleanup := newValidationRepoMock(t)
	defer cleanup()

	repo := NewValidationRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO validation_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.ValidationRequest{
		StudentNumber: "2021-00123",
		StudentID:     "user-1",
		StudentName:   "Juan Dela Cruz",
		Email:         "juan@students.campus.edu",
		College:       "CCS",
		Course:        "BSIT",
		Section:       "3A",
		YearLevel:     "3",
		Status:        models.ValidationPending,
		Semester:      "1st",
		SchoolYear:    "2025-2026",
		SubmittedAt:   time.Now(),
	}
	require.NoError(t, repo.Upsert(context.Background(), req))

	rows := sqlmock.NewRows([]string{
		"student_number", "student_id", "student_name", "email", "phone", "college", "course", "section", "year_level",
		"cor_url", "id_photo_url", "face_front_url", "face_left_url", "face_right_url",
		"status", "reject_remarks", "reviewed_by", "reviewed_by_role", "reviewed_at",
		"semester", "school_year", "qr_code_id", "expires_at", "submitted_at",
	}).AddRow(
		req.StudentNumber, req.StudentID, req.StudentName, req.Email, "", req.College, req.Course, req.Section, req.YearLevel,
		"", "", "", "", "",
		string(models.ValidationPending), nil, nil, nil, nil,
		req.Semester, req.SchoolYear, nil, nil, req.SubmittedAt,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM validation_requests WHERE student_number = $1")).
		WithArgs(req.StudentNumber).
		WillReturnRows(rows)

	found, err := repo.FindByStudentNumber(context.Background(), req.StudentNumber)
	require.NoError(t, err)
	require.Equal(t, req.StudentNumber, found.StudentNumber)
	require.Equal(t, models.ValidationPending, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidationRequestRepositoryReject(t *testing.T) {
	db, mock, cleanup := newValidationRepoMock(t)
	defer cleanup()

	repo := NewValidationRequestRepository(db)
	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE validation_requests")).
		WithArgs(models.ValidationRejected, "blurry COR photo", "osa-1", models.RoleOSA, at, "2021-00123", models.ValidationPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Reject(context.Background(), "2021-00123", "blurry COR photo", "osa-1", models.RoleOSA, at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidationRequestRepositoryRejectStale(t *testing.T) {
	db, mock, cleanup := newValidationRepoMock(t)
	defer cleanup()

	repo := NewValidationRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE validation_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reject(context.Background(), "2021-00123", "duplicate", "osa-1", models.RoleOSA, time.Now())
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func issueBundleFixture(now time.Time) QRIssueBundle {
	userID := "admin-1"
	return QRIssueBundle{
		StudentNumber: "2021-00123",
		QR: &models.QRCode{
			ID:            "qr-1",
			StudentNumber: "2021-00123",
			Token:         "tok-1",
			ExpiresAt:     now.Add(7 * 24 * time.Hour),
			StudentName:   "Juan Dela Cruz",
			Course:        "BSIT",
			Section:       "3A",
			CreatedAt:     now,
		},
		Email: mail.Message{
			ID:             "mail-1",
			Recipient:      "juan@students.campus.edu",
			RecipientName:  "Juan Dela Cruz",
			Subject:        "ID Validation Approved - Gate Pass Attached",
			HTMLBody:       "<p>approved</p>",
			AttachmentName: "gate-pass-2021-00123.png",
			AttachmentB64:  "aGVsbG8=",
		},
		Audit: &models.AuditLog{
			UserID:   &userID,
			Action:   "ACCEPT_REQUEST",
			Resource: "validation_requests",
		},
		Reviewer:     "admin-1",
		ReviewerRole: models.RoleAdmin,
		Now:          now,
	}
}

func TestValidationRequestRepositoryAcceptPendingCommitsBundle(t *testing.T) {
	db, mock, cleanup := newValidationRepoMock(t)
	defer cleanup()

	repo := NewValidationRequestRepository(db)
	now := time.Now()
	b := issueBundleFixture(now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE validation_requests")).
		WithArgs(models.ValidationAccepted, b.Reviewer, b.ReviewerRole, now, b.QR.ID, b.QR.ExpiresAt, b.StudentNumber, models.ValidationPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE qr_codes")).
		WithArgs(now, b.Reviewer, "superseded by reissue", b.StudentNumber).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO qr_codes")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_outbox")).
		WithArgs(b.Email.ID, b.Email.Recipient, b.Email.RecipientName, b.Email.Subject, b.Email.HTMLBody,
			b.Email.AttachmentName, b.Email.AttachmentB64, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AcceptPending(context.Background(), b))
	require.NotEmpty(t, b.Audit.ID)
	require.Equal(t, now, b.Audit.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidationRequestRepositoryAcceptPendingStaleRollsBack(t *testing.T) {
	db, mock, cleanup := newValidationRepoMock(t)
	defer cleanup()

	repo := NewValidationRequestRepository(db)
	b := issueBundleFixture(time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE validation_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AcceptPending(context.Background(), b)
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidationRequestRepositoryReissueTargetsAcceptedStatus(t *testing.T) {
	db, mock, cleanup := newValidationRepoMock(t)
	defer cleanup()

	repo := NewValidationRequestRepository(db)
	now := time.Now()
	b := issueBundleFixture(now)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE validation_requests")).
		WithArgs(models.ValidationAccepted, b.Reviewer, b.ReviewerRole, now, b.QR.ID, b.QR.ExpiresAt, b.StudentNumber, models.ValidationAccepted).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE qr_codes")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO qr_codes")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_outbox")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReissueAccepted(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}
