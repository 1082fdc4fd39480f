// Package testutil holds fixtures shared by store, service and handler tests.
package testutil

import (
	"sync"
	"time"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// GroupVisitSubmission returns a valid group visit with two visitors
func GroupVisitSubmission() *entity.Submission {
	return &entity.Submission{
		Type:          entity.TypeGroupVisit,
		ContactName:   "김담당",
		AccessArea:    entity.AreaMain1F,
		VehicleNumber: "12가3456",
		Files: []entity.FileUpload{{
			ID:         "file-1",
			Filename:   "방문자명단.pdf",
			FileKey:    "uploads/visitors.pdf",
			FileType:   "application/pdf",
			UploadedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		}},
		GroupVisit: &entity.GroupVisit{
			Organization:     "한국산업기술원",
			Representative:   "김대표",
			ContactPhone:     "010-1234-5678",
			VisitStartDate:   time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			VisitEndDate:     time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
			VisitPurpose:     "시설 견학",
			VisitLocation:    "본관동",
			EscortName:       "이인솔",
			EscortPhone:      "010-2222-3333",
			EscortDepartment: "안전관리팀",
			Visitors: []entity.Visitor{
				{Name: "홍길동", BirthDate: "1990-01-01", Phone: "010-1111-2222", Organization: "한국산업기술원"},
				{Name: "김철수", BirthDate: "1985-05-05", Phone: "010-3333-4444", Organization: "한국산업기술원", Position: "연구원"},
			},
		},
	}
}

// PortAccessSubmission returns a valid port access request
func PortAccessSubmission() *entity.Submission {
	return &entity.Submission{
		Type:       entity.TypePortAccess,
		AccessArea: entity.AreaPier1,
		PortAccess: &entity.PortAccess{
			AccessStart:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
			AccessEnd:     time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC),
			AccessPurpose: "하역 작업",
			Personnel: []entity.Personnel{
				{Organization: "부산항만공사", Position: "과장", Name: "박영희", BirthDate: "1980-03-03", Address: "부산시 중구"},
				{Organization: "대한물류", Position: "기사", Name: "정기사", BirthDate: "1975-07-07", Address: "부산시 동구"},
			},
		},
	}
}

// GoodsSubmission returns a valid goods in/out request
func GoodsSubmission() *entity.Submission {
	return &entity.Submission{
		Type:       entity.TypeGoodsInOut,
		AccessArea: entity.AreaProcess,
		GoodsInOut: &entity.GoodsInOut{
			InOutType:    entity.InOutIn,
			UsagePurpose: "정비",
			Items: []entity.GoodsItem{
				{Name: "렌치", Specification: "20mm", Quantity: 2, Unit: "EA"},
				{Name: "절연장갑", Specification: "L", Quantity: 10, Unit: "켤레", Remarks: "예비품"},
			},
		},
	}
}

// VisitR3Submission returns a valid individual visit
func VisitR3Submission() *entity.Submission {
	return &entity.Submission{
		Type:       entity.TypeVisitR3,
		AccessArea: entity.AreaMain3F,
		VisitR3: &entity.VisitR3{
			VisitorName:         "최방문",
			VisitorPhone:        "010-5555-6666",
			VisitorOrganization: "IT솔루션",
			VisitorPosition:     "대리",
			VisitDatetime:       time.Date(2025, 5, 28, 14, 0, 0, 0, time.UTC),
			VisitPurpose:        "미팅",
			ContactEmail:        "visitor@example.com",
		},
	}
}

// AllSubmissions returns one valid submission of every type
func AllSubmissions() []*entity.Submission {
	return []*entity.Submission{GroupVisitSubmission(), PortAccessSubmission(), GoodsSubmission(), VisitR3Submission()}
}

// Clock is a manually advanced time source safe for concurrent use
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
