package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is a rendered transactional email ready to send. AttachmentB64 holds
// the QR PNG, already base64-encoded the way the outbox stores it.
type Message struct {
	ID             string
	Recipient      string
	RecipientName  string
	Subject        string
	HTMLBody       string
	AttachmentName string
	AttachmentB64  string
}

// Mailer sends a single rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	key  string
	from *sgmail.Email
}

// NewSendGridMailer builds a mailer sending as the given identity.
func NewSendGridMailer(key, fromName, fromEmail string) *SendGridMailer {
	return &SendGridMailer{
		key:  key,
		from: sgmail.NewEmail(fromName, fromEmail),
	}
}

// Send delivers the message, returning an error on any non-2xx response so the
// dispatcher can retry.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.RecipientName, msg.Recipient))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/html", msg.HTMLBody))

	if msg.AttachmentB64 != "" {
		att := sgmail.NewAttachment()
		att.SetContent(msg.AttachmentB64)
		att.SetType("image/png")
		att.SetFilename(msg.AttachmentName)
		att.SetDisposition("attachment")
		v3.AddAttachment(att)
	}

	req := sendgrid.GetRequest(m.key, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(v3)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid responded %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
