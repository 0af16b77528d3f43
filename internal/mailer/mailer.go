// Package mailer sends relay jobs as email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	netmail "net/mail"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/zapbridge/zapbridge/internal/config"
	"github.com/zapbridge/zapbridge/internal/domain"
)

// Mailer sends a single relay job and returns the generated Message-Id.
type Mailer interface {
	Send(ctx context.Context, job domain.RelayJob) (string, error)
}

// SMTPMailer implements Mailer against a configured SMTP server.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// New creates an SMTP-backed mailer.
func New(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send builds the MIME message for the job and submits it. One attempt,
// no retry; the caller surfaces failures to the sender.
func (m *SMTPMailer) Send(ctx context.Context, job domain.RelayJob) (string, error) {
	from, err := netmail.ParseAddress(m.cfg.From)
	if err != nil {
		return "", fmt.Errorf("parse MAIL_FROM address: %w", err)
	}

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), m.cfg.Host)
	msg, err := BuildMessage(job, from, messageID)
	if err != nil {
		return "", fmt.Errorf("build message: %w", err)
	}

	if err := m.submit(ctx, from.Address, job.Recipient, msg); err != nil {
		return "", err
	}
	return messageID, nil
}

// submit dials the SMTP server, negotiates TLS according to the configured
// port, authenticates when credentials are set, and sends the message.
func (m *SMTPMailer) submit(ctx context.Context, from, to string, msg []byte) error {
	dialer := &net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", m.cfg.Addr())
	if err != nil {
		return fmt.Errorf("dial smtp server: %w", err)
	}

	tlsConfig := &tls.Config{ServerName: m.cfg.Host}

	// Port 465 is implicit TLS; everything else starts plain and upgrades
	// with STARTTLS on the submission port.
	var client *smtp.Client
	switch m.cfg.Port {
	case 465:
		client = smtp.NewClient(tls.Client(conn, tlsConfig))
	case 587:
		client, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	default:
		client = smtp.NewClient(conn)
	}
	defer func() { _ = client.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if m.cfg.Username != "" {
		auth := sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.SendMail(from, []string{to}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return client.Quit()
}

// BuildMessage renders the RFC 5322 message for a relay job: a UTF-8 text
// part plus the attachment with its original content type and the fixed
// filename. Split out from Send so tests can assert the output without a
// server.
func BuildMessage(job domain.RelayJob, from *netmail.Address, messageID string) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{{Address: job.Recipient}})
	h.SetSubject(job.Subject)
	h.SetMessageID(messageID)

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline part: %w", err)
	}
	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("create text part: %w", err)
	}
	if _, err := io.WriteString(pw, job.Body); err != nil {
		return nil, fmt.Errorf("write text part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("close text part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline part: %w", err)
	}

	if len(job.Attachment.Data) > 0 {
		var ah mail.AttachmentHeader
		ah.Set("Content-Type", job.Attachment.ContentType)
		ah.SetFilename(job.Attachment.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("create attachment: %w", err)
		}
		if _, err := aw.Write(job.Attachment.Data); err != nil {
			return nil, fmt.Errorf("write attachment: %w", err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("close attachment: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}

	return buf.Bytes(), nil
}
