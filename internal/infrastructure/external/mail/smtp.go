package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

// Config holds SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer implements port.Mailer over plain SMTP with STARTTLS when offered
type SMTPMailer struct {
	cfg    Config
	send   sendFunc
	now    func() time.Time
	logger *zap.Logger
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(cfg Config, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}
}

// SendMail delivers mail. The context only bounds the call before the dial.
func (m *SMTPMailer) SendMail(ctx context.Context, mail port.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mail.To == "" {
		return fmt.Errorf("recipient is required")
	}
	if m.cfg.Host == "" || m.cfg.From == "" {
		return fmt.Errorf("smtp is not configured")
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := m.buildMessage(mail)
	if err := m.send(addr, auth, m.cfg.From, []string{mail.To}, msg); err != nil {
		m.logger.Error("Failed to send email",
			zap.String("to", mail.To),
			zap.String("subject", mail.Subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent", zap.String("to", mail.To))
	return nil
}

func (m *SMTPMailer) buildMessage(mail port.Mail) []byte {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", m.cfg.FromName), m.cfg.From)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", mail.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", mail.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	buf.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(mail.Body))
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

var _ port.Mailer = (*SMTPMailer)(nil)
