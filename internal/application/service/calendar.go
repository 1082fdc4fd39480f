package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/access-portal/internal/application/report"
	"github.com/garyjia/access-portal/internal/domain/entity"
)

// ErrInvalidPeriod is returned for a calendar month outside 1..12 or a non-positive year
var ErrInvalidPeriod = errors.New("invalid calendar period")

// Calendar groups scheduled visits of one month by local day
type Calendar struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
	Total int           `json:"total"`
}

// CalendarDay lists the visits starting on Date (YYYY-MM-DD)
type CalendarDay struct {
	Date  string         `json:"date"`
	Count int            `json:"count"`
	Items []CalendarItem `json:"items"`
}

// CalendarItem is one visit on the calendar
type CalendarItem struct {
	ID            string        `json:"id"`
	Receipt       string        `json:"receipt"`
	Type          entity.Type   `json:"type"`
	TypeLabel     string        `json:"typeLabel"`
	Status        entity.Status `json:"status"`
	ApplicantName string        `json:"applicantName"`
	Organization  string        `json:"organization"`
	ScheduledAt   time.Time     `json:"scheduledAt"`
}

// Calendar lists visits scheduled in the given month. Goods in/out
// requests have no visit date and never appear. An empty status matches all.
func (s *applicationServiceImpl) Calendar(ctx context.Context, year, month int, status entity.Status) (*Calendar, error) {
	if year < 1 || month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d-%d", ErrInvalidPeriod, year, month)
	}

	apps, err := s.store.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to load applications for calendar", "error", err)
		return nil, err
	}
	return BuildCalendar(apps, year, month, status, s.location), nil
}

// BuildCalendar is the pure grouping behind ApplicationService.Calendar
func BuildCalendar(apps []*entity.Application, year, month int, status entity.Status, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0)

	cal := &Calendar{Year: year, Month: month, Days: []CalendarDay{}}
	byDay := make(map[string]*CalendarDay)

	for _, app := range apps {
		if status != "" && app.Status != status {
			continue
		}
		at, ok := app.ScheduledAt()
		if !ok {
			continue
		}
		local := at.In(loc)
		if local.Before(start) || !local.Before(end) {
			continue
		}

		key := local.Format("2006-01-02")
		day, exists := byDay[key]
		if !exists {
			day = &CalendarDay{Date: key}
			byDay[key] = day
		}
		day.Items = append(day.Items, CalendarItem{
			ID:            app.ID,
			Receipt:       app.Receipt,
			Type:          app.Type,
			TypeLabel:     app.Type.Label(),
			Status:        app.Status,
			ApplicantName: app.ApplicantName(),
			Organization:  report.Organization(app),
			ScheduledAt:   at,
		})
		day.Count++
		cal.Total++
	}

	for _, day := range byDay {
		sort.SliceStable(day.Items, func(i, j int) bool {
			if day.Items[i].ScheduledAt.Equal(day.Items[j].ScheduledAt) {
				return day.Items[i].Receipt < day.Items[j].Receipt
			}
			return day.Items[i].ScheduledAt.Before(day.Items[j].ScheduledAt)
		})
		cal.Days = append(cal.Days, *day)
	}
	sort.Slice(cal.Days, func(i, j int) bool { return cal.Days[i].Date < cal.Days[j].Date })

	return cal
}
