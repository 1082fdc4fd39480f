// Package report derives dashboard aggregates from a set of applications.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// MonthWindow is the number of trailing calendar months in MonthlyStats
const MonthWindow = 6

const (
	unknownOrganization = "미상"
	otherOrganization   = "기타"
)

// Stats is the admin dashboard aggregate
type Stats struct {
	TotalApplications int                   `json:"totalApplications"`
	StatusStats       map[entity.Status]int `json:"statusStats"`
	TypeStats         map[entity.Type]int   `json:"typeStats"`
	MonthlyStats      []MonthlyStat         `json:"monthlyStats"`
	OrganizationStats []OrganizationStat    `json:"organizationStats"`
}

// MonthlyStat counts applications created in one calendar month
type MonthlyStat struct {
	Month    string                `json:"month"`
	Year     int                   `json:"year"`
	MonthNo  int                   `json:"monthNo"`
	Count    int                   `json:"count"`
	ByType   map[entity.Type]int   `json:"byType"`
	ByStatus map[entity.Status]int `json:"byStatus"`
}

// OrganizationStat is one leaderboard row
type OrganizationStat struct {
	Organization string `json:"organization"`
	Count        int    `json:"count"`
}

// Compute aggregates apps relative to now. Months are bucketed by created_at
// in loc; a nil loc means UTC.
func Compute(apps []*entity.Application, now time.Time, loc *time.Location) Stats {
	if loc == nil {
		loc = time.UTC
	}

	stats := Stats{
		TotalApplications: len(apps),
		StatusStats:       zeroStatuses(),
		TypeStats:         zeroTypes(),
		MonthlyStats:      make([]MonthlyStat, MonthWindow),
	}

	local := now.In(loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	index := make(map[string]int, MonthWindow)
	for i := 0; i < MonthWindow; i++ {
		m := first.AddDate(0, i-(MonthWindow-1), 0)
		stats.MonthlyStats[i] = MonthlyStat{
			Month:    Label(m),
			Year:     m.Year(),
			MonthNo:  int(m.Month()),
			ByType:   zeroTypes(),
			ByStatus: zeroStatuses(),
		}
		index[monthKey(m)] = i
	}

	orgs := make(map[string]int)
	for _, app := range apps {
		stats.StatusStats[app.Status]++
		stats.TypeStats[app.Type]++

		if i, ok := index[monthKey(app.CreatedAt.In(loc))]; ok {
			ms := &stats.MonthlyStats[i]
			ms.Count++
			ms.ByType[app.Type]++
			ms.ByStatus[app.Status]++
		}

		orgs[Organization(app)]++
	}

	stats.OrganizationStats = make([]OrganizationStat, 0, len(orgs))
	for name, count := range orgs {
		stats.OrganizationStats = append(stats.OrganizationStats, OrganizationStat{Organization: name, Count: count})
	}
	sort.Slice(stats.OrganizationStats, func(i, j int) bool {
		a, b := stats.OrganizationStats[i], stats.OrganizationStats[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Organization < b.Organization
	})

	return stats
}

// Organization extracts the organization-equivalent field for the leaderboard
func Organization(app *entity.Application) string {
	switch app.Type {
	case entity.TypeGroupVisit:
		if app.GroupVisit != nil {
			return app.GroupVisit.Organization
		}
	case entity.TypePortAccess:
		if app.PortAccess != nil && len(app.PortAccess.Personnel) > 0 && app.PortAccess.Personnel[0].Organization != "" {
			return app.PortAccess.Personnel[0].Organization
		}
		return unknownOrganization
	case entity.TypeVisitR3:
		if app.VisitR3 != nil {
			return app.VisitR3.VisitorOrganization
		}
	}
	return otherOrganization
}

// Label renders the month label shown on the dashboard, e.g. "2025년 5월"
func Label(t time.Time) string {
	return fmt.Sprintf("%d년 %d월", t.Year(), int(t.Month()))
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

func zeroStatuses() map[entity.Status]int {
	m := make(map[entity.Status]int, len(entity.AllStatuses))
	for _, s := range entity.AllStatuses {
		m[s] = 0
	}
	return m
}

func zeroTypes() map[entity.Type]int {
	m := make(map[entity.Type]int, len(entity.AllTypes))
	for _, t := range entity.AllTypes {
		m[t] = 0
	}
	return m
}
