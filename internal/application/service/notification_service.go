package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/access-portal/internal/application/dispatcher"
	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/event"
)

// NotificationService fans application events out to applicants and the
// security team. Every channel is optional and no failure propagates.
type NotificationService interface {
	// Register subscribes the handlers on d
	Register(d dispatcher.Dispatcher)
	HandleSubmitted(ctx context.Context, evt *event.Event) error
	HandleStatusChanged(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	mailer    port.Mailer
	sms       port.SMSSender
	alerter   port.StaffAlerter
	statusURL string
	location  *time.Location
	logger    Logger
}

// NotificationOption configures the notification service
type NotificationOption func(*notificationServiceImpl)

// WithNotificationLocation sets the zone visit times and dates are printed in
func WithNotificationLocation(loc *time.Location) NotificationOption {
	return func(s *notificationServiceImpl) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewNotificationService creates a new NotificationService. Any sender may
// be nil to disable that channel. statusURL is the public status page base,
// linked from approval texts when set.
func NewNotificationService(
	mailer port.Mailer,
	sms port.SMSSender,
	alerter port.StaffAlerter,
	statusURL string,
	logger Logger,
	opts ...NotificationOption,
) NotificationService {
	s := &notificationServiceImpl{
		mailer:    mailer,
		sms:       sms,
		alerter:   alerter,
		statusURL: strings.TrimRight(statusURL, "/"),
		location:  time.UTC,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeApplicationSubmitted, "notify.submitted", s.HandleSubmitted)
	d.SubscribeNamed(event.TypeApplicationStatusChanged, "notify.status_changed", s.HandleStatusChanged)
}

// HandleSubmitted confirms receipt to the applicant and alerts staff
func (s *notificationServiceImpl) HandleSubmitted(ctx context.Context, evt *event.Event) error {
	app := evt.Application
	if app == nil {
		s.logger.Error("Submitted event without application", "event_id", evt.ID)
		return nil
	}

	s.sendMail(ctx, app, SubmissionMail(app, s.location))
	s.sendAlert(ctx, app, StaffAlertText(app, s.location))
	return nil
}

// HandleStatusChanged tells the applicant about an approval or rejection.
// Moving into review is not announced.
func (s *notificationServiceImpl) HandleStatusChanged(ctx context.Context, evt *event.Event) error {
	app := evt.Application
	if app == nil {
		s.logger.Error("Status event without application", "event_id", evt.ID)
		return nil
	}

	switch app.Status {
	case entity.StatusApproved:
		s.sendMail(ctx, app, ApprovalMail(app))
		s.sendSMS(ctx, app, ApprovalSMS(app, s.statusURL))
	case entity.StatusRejected:
		s.sendMail(ctx, app, RejectionMail(app, evt.GetPayloadString(event.PayloadReason)))
	}
	return nil
}

func (s *notificationServiceImpl) sendMail(ctx context.Context, app *entity.Application, mail port.Mail) {
	if s.mailer == nil || mail.To == "" {
		return
	}
	if err := s.mailer.SendMail(ctx, mail); err != nil {
		s.logger.Error("Failed to send email", "error", err, "receipt", app.Receipt)
		return
	}
	s.logger.Info("Email sent", "receipt", app.Receipt, "subject", mail.Subject)
}

func (s *notificationServiceImpl) sendSMS(ctx context.Context, app *entity.Application, text string) {
	phone := app.ContactPhone()
	if s.sms == nil || phone == "" {
		return
	}
	if err := s.sms.SendSMS(ctx, phone, text); err != nil {
		s.logger.Error("Failed to send SMS", "error", err, "receipt", app.Receipt)
		return
	}
	s.logger.Info("SMS sent", "receipt", app.Receipt)
}

func (s *notificationServiceImpl) sendAlert(ctx context.Context, app *entity.Application, text string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.SendAlert(ctx, text); err != nil {
		s.logger.Error("Failed to send staff alert", "error", err, "receipt", app.Receipt)
	}
}

// ApprovalSMS is the LMS text sent on approval
func ApprovalSMS(app *entity.Application, statusURL string) string {
	text := fmt.Sprintf("[B-LINK] 출입 신청이 승인되었습니다.\n접수번호: %s", app.Receipt)
	if statusURL != "" {
		text += fmt.Sprintf("\n\n아래 링크에서 신청 현황을 확인해 주세요.\n%s?receipt=%s", statusURL, app.Receipt)
	}
	return text
}

// StaffAlertText is the chat message the security team receives per
// submission. The schedule is printed in loc.
func StaffAlertText(app *entity.Application, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("새 출입 신청이 접수되었습니다\n")
	fmt.Fprintf(&b, "접수번호: %s\n", app.Receipt)
	fmt.Fprintf(&b, "신청유형: %s\n", app.Type.Label())
	fmt.Fprintf(&b, "신청자: %s\n", app.ApplicantName())
	fmt.Fprintf(&b, "출입구역: %s", app.AccessArea.Label())
	if at, ok := app.ScheduledAt(); ok {
		fmt.Fprintf(&b, "\n방문일시: %s", at.In(loc).Format("2006-01-02 15:04"))
	}
	return b.String()
}
