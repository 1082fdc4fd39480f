package port

import "context"

// Mail is a rendered email message
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email to applicants
type Mailer interface {
	SendMail(ctx context.Context, mail Mail) error
}

// SMSSender delivers text messages to applicants
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) error
}

// StaffAlerter posts a message to the security team's chat
type StaffAlerter interface {
	SendAlert(ctx context.Context, text string) error
}
