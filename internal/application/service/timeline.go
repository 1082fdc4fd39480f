package service

import (
	"time"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// Timeline step states
const (
	StepCompleted = "completed"
	StepCurrent   = "current"
	StepPending   = "pending"
)

// TimelineStep is one stage shown on the public status page
type TimelineStep struct {
	Key         entity.Status `json:"key"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	State       string        `json:"state"`
	Date        *time.Time    `json:"date,omitempty"`
}

// Timeline renders the three visible stages of app. The final stage is
// either approval or rejection; the branch not taken is omitted.
func Timeline(app *entity.Application) []TimelineStep {
	status := app.Status
	decided := status == entity.StatusApproved || status == entity.StatusRejected

	created := app.CreatedAt
	received := TimelineStep{
		Key:         entity.StatusPending,
		Title:       "접수완료",
		Description: "신청서가 접수되었습니다",
		State:       StepCompleted,
		Date:        &created,
	}
	if status == entity.StatusPending {
		received.State = StepCurrent
	}

	review := TimelineStep{
		Key:         entity.StatusUnderReview,
		Title:       "검토중",
		Description: "담당자가 신청서를 검토하고 있습니다",
		State:       StepPending,
	}
	switch {
	case status == entity.StatusUnderReview:
		review.State = StepCurrent
	case decided:
		review.State = StepCompleted
	}
	if status != entity.StatusPending {
		updated := app.UpdatedAt
		review.Date = &updated
	}

	final := TimelineStep{
		Key:         entity.StatusApproved,
		Title:       "승인완료",
		Description: "출입이 승인되었습니다",
		State:       StepPending,
	}
	if status == entity.StatusRejected {
		final.Key = entity.StatusRejected
		final.Title = "반려"
		final.Description = "신청이 반려되었습니다"
		if app.RejectionReason != "" {
			final.Description = app.RejectionReason
		}
	}
	if decided {
		final.State = StepCurrent
		updated := app.UpdatedAt
		final.Date = &updated
	}

	return []TimelineStep{received, review, final}
}
