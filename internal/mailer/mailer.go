package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/icard-hq/apiserver/config"
	mail "github.com/wneessen/go-mail"
)

// Sender delivers a message to a single recipient. Implementations must
// surface transport failures as a *DeliveryError rather than swallowing them.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error
}

// Attachment is a named binary payload attached to an outgoing message.
type Attachment struct {
	Filename string
	Data     []byte
}

// DeliveryError marks a failure in the mail transport (bad credentials,
// rejected auth, provider error). Callers report it to the user; the
// enclosing operation is never rolled back because of it.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mail delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// SMTPSender sends mail over SMTP. TLS is chosen from the port the way most
// providers expect it: 465 is implicit TLS, 587 requires STARTTLS, anything
// else negotiates opportunistically.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("smtp credentials are missing: configure SMTP_USERNAME and SMTP_PASSWORD")
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string, attachments ...Attachment) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return &DeliveryError{Err: err}
	}
	if err := msg.To(to); err != nil {
		return &DeliveryError{Err: err}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	for _, att := range attachments {
		msg.AttachReadSeeker(att.Filename, strings.NewReader(string(att.Data)))
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	}
	switch s.cfg.Port {
	case 465:
		opts = append(opts, mail.WithSSL())
	case 587:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return &DeliveryError{Err: err}
	}
	return nil
}
