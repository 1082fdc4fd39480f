package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

type capturedSend struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  []byte
}

func newTestMailer(cfg Config, err error) (*SMTPMailer, *capturedSend) {
	captured := &capturedSend{}
	m := NewSMTPMailer(cfg, zap.NewNop())
	m.now = func() time.Time { return time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC) }
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr, captured.auth, captured.from, captured.to, captured.msg = addr, a, from, to, msg
		return err
	}
	return m, captured
}

func decodeBody(t *testing.T, msg []byte) string {
	t.Helper()
	parts := strings.SplitN(string(msg), "\r\n\r\n", 2)
	require.Len(t, parts, 2)
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(parts[1], "\r\n", ""))
	require.NoError(t, err)
	return string(raw)
}

func header(t *testing.T, msg []byte, name string) string {
	t.Helper()
	for _, line := range strings.Split(string(msg), "\r\n") {
		if line == "" {
			break
		}
		if strings.HasPrefix(line, name+": ") {
			return strings.TrimPrefix(line, name+": ")
		}
	}
	t.Fatalf("header %s not found", name)
	return ""
}

func TestSMTPMailer_SendMail(t *testing.T) {
	cfg := Config{Host: "smtp.example.com", Port: 587, Username: "noreply", Password: "pw", From: "noreply@example.com", FromName: "보령LNG터미널"}
	m, captured := newTestMailer(cfg, nil)

	body := strings.Repeat("출입 신청이 접수되었습니다.\n", 10)
	err := m.SendMail(context.Background(), port.Mail{
		To:      "visitor@example.com",
		Subject: "[보령LNG터미널] 출입 신청이 접수되었습니다 - 접수번호: VR-20250528-0001",
		Body:    body,
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", captured.addr)
	assert.NotNil(t, captured.auth)
	assert.Equal(t, "noreply@example.com", captured.from)
	assert.Equal(t, []string{"visitor@example.com"}, captured.to)

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(header(t, captured.msg, "Subject"))
	require.NoError(t, err)
	assert.Equal(t, "[보령LNG터미널] 출입 신청이 접수되었습니다 - 접수번호: VR-20250528-0001", subject)

	from, err := dec.DecodeHeader(header(t, captured.msg, "From"))
	require.NoError(t, err)
	assert.Equal(t, "보령LNG터미널 <noreply@example.com>", from)

	assert.Equal(t, "text/plain; charset=UTF-8", header(t, captured.msg, "Content-Type"))
	assert.Equal(t, body, decodeBody(t, captured.msg))

	for _, line := range strings.Split(string(captured.msg), "\r\n") {
		assert.LessOrEqual(t, len(line), 998)
	}
}

func TestSMTPMailer_NoAuthWithoutUsername(t *testing.T) {
	m, captured := newTestMailer(Config{Host: "relay.local", Port: 25, From: "portal@example.com"}, nil)

	require.NoError(t, m.SendMail(context.Background(), port.Mail{To: "a@example.com", Subject: "s", Body: "b"}))
	assert.Nil(t, captured.auth)
	assert.Equal(t, "portal@example.com", header(t, captured.msg, "From"))
}

func TestSMTPMailer_Errors(t *testing.T) {
	cfg := Config{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}

	t.Run("missing recipient", func(t *testing.T) {
		m, captured := newTestMailer(cfg, nil)
		assert.Error(t, m.SendMail(context.Background(), port.Mail{Subject: "s"}))
		assert.Nil(t, captured.msg)
	})

	t.Run("not configured", func(t *testing.T) {
		m, _ := newTestMailer(Config{}, nil)
		assert.Error(t, m.SendMail(context.Background(), port.Mail{To: "a@example.com"}))
	})

	t.Run("canceled context", func(t *testing.T) {
		m, captured := newTestMailer(cfg, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, m.SendMail(ctx, port.Mail{To: "a@example.com"}), context.Canceled)
		assert.Nil(t, captured.msg)
	})

	t.Run("transport failure is wrapped", func(t *testing.T) {
		sendErr := errors.New("535 authentication failed")
		m, _ := newTestMailer(cfg, sendErr)
		err := m.SendMail(context.Background(), port.Mail{To: "a@example.com"})
		assert.ErrorIs(t, err, sendErr)
	})
}
