package service

import (
	"fmt"
	"time"
)

const acceptanceEmailBody = `<div style="font-family:Arial,sans-serif;max-width:560px;margin:0 auto">
  <h2>Your ID validation was approved</h2>
  <p>Hi %s,</p>
  <p>Your ID validation request for student number <strong>%s</strong> has been
  accepted. Your gate pass QR code is attached to this email.</p>
  <p>Present the QR code together with your physical ID at the validation
  booth. The code is single use and expires on <strong>%s</strong>.</p>
  <p>If the code expires before you can visit the booth, ask the Office of
  Student Affairs to resend it.</p>
</div>`

// acceptanceEmail renders the subject and HTML body of the approval email the
// QR attachment rides on.
func acceptanceEmail(studentName, studentNumber string, expiresAt time.Time) (subject, html string) {
	subject = "ID Validation Approved - Gate Pass Attached"
	html = fmt.Sprintf(acceptanceEmailBody, studentName, studentNumber, expiresAt.Format("January 2, 2006"))
	return subject, html
}
