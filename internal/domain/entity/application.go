package entity

import (
	"strings"
	"time"
)

// Application is a visitor/access request. Exactly one of the variant
// detail pointers is set and it always matches Type.
type Application struct {
	ID              string       `json:"id"`
	Receipt         string       `json:"receipt"`
	Type            Type         `json:"type"`
	ContactName     string       `json:"contact_name,omitempty"`
	AccessArea      AccessArea   `json:"access_area"`
	Status          Status       `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
	Files           []FileUpload `json:"files"`
	VehicleNumber   string       `json:"vehicle_number,omitempty"`
	VehicleModel    string       `json:"vehicle_model,omitempty"`
	VisitStartTime  string       `json:"visit_start_time,omitempty"`
	VisitEndTime    string       `json:"visit_end_time,omitempty"`

	GroupVisit *GroupVisit `json:"group_visit,omitempty"`
	PortAccess *PortAccess `json:"port_access,omitempty"`
	GoodsInOut *GoodsInOut `json:"goods_inout,omitempty"`
	VisitR3    *VisitR3    `json:"visit_r3,omitempty"`
}

// GroupVisit holds the GROUP_VISIT payload
type GroupVisit struct {
	Organization     string    `json:"organization"`
	Representative   string    `json:"representative"`
	ContactPhone     string    `json:"contact_phone"`
	VisitStartDate   time.Time `json:"visit_start_date"`
	VisitEndDate     time.Time `json:"visit_end_date"`
	VisitPurpose     string    `json:"visit_purpose"`
	VisitLocation    string    `json:"visit_location"`
	EscortName       string    `json:"escort_name"`
	EscortPhone      string    `json:"escort_phone"`
	EscortDepartment string    `json:"escort_department"`
	Visitors         []Visitor `json:"visitors"`
}

// Visitor is one person listed on a group visit
type Visitor struct {
	Name         string `json:"name"`
	BirthDate    string `json:"birth_date"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
	Position     string `json:"position,omitempty"`
}

// PortAccess holds the PORT_ACCESS payload
type PortAccess struct {
	AccessStart   time.Time   `json:"access_start_datetime"`
	AccessEnd     time.Time   `json:"access_end_datetime"`
	AccessPurpose string      `json:"access_purpose"`
	Personnel     []Personnel `json:"personnel"`
}

// Personnel is one person listed on a port access request
type Personnel struct {
	Organization string `json:"organization"`
	Position     string `json:"position"`
	Name         string `json:"name"`
	BirthDate    string `json:"birth_date"`
	Address      string `json:"address"`
}

// GoodsInOut holds the GOODS_INOUT payload
type GoodsInOut struct {
	InOutType    InOutType   `json:"inout_type"`
	UsagePurpose string      `json:"usage_purpose"`
	Items        []GoodsItem `json:"items"`
}

// GoodsItem is one line of a goods in/out request
type GoodsItem struct {
	Name          string `json:"name"`
	Specification string `json:"specification"`
	Quantity      int    `json:"quantity"`
	Unit          string `json:"unit"`
	Remarks       string `json:"remarks,omitempty"`
}

// VisitR3 holds the individual visit payload
type VisitR3 struct {
	VisitorName         string    `json:"visitor_name"`
	VisitorPhone        string    `json:"visitor_phone"`
	VisitorOrganization string    `json:"visitor_organization"`
	VisitorPosition     string    `json:"visitor_position"`
	VisitDatetime       time.Time `json:"visit_datetime"`
	VisitPurpose        string    `json:"visit_purpose"`
	ContactEmail        string    `json:"contact_email,omitempty"`
}

// Submission is a validated application payload before the store assigns
// identity, receipt, status and timestamps.
type Submission struct {
	Type           Type
	ContactName    string
	AccessArea     AccessArea
	Files          []FileUpload
	VehicleNumber  string
	VehicleModel   string
	VisitStartTime string
	VisitEndTime   string

	GroupVisit *GroupVisit
	PortAccess *PortAccess
	GoodsInOut *GoodsInOut
	VisitR3    *VisitR3
}

// Validate checks the structural invariant of the tagged union
func (s *Submission) Validate() error {
	if s == nil || !s.Type.IsValid() {
		return ErrInvalidSubmission
	}

	set := 0
	for _, present := range []bool{s.GroupVisit != nil, s.PortAccess != nil, s.GoodsInOut != nil, s.VisitR3 != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return ErrInvalidSubmission
	}

	switch s.Type {
	case TypeGroupVisit:
		if s.GroupVisit == nil {
			return ErrInvalidSubmission
		}
	case TypePortAccess:
		if s.PortAccess == nil {
			return ErrInvalidSubmission
		}
	case TypeGoodsInOut:
		if s.GoodsInOut == nil {
			return ErrInvalidSubmission
		}
	case TypeVisitR3:
		if s.VisitR3 == nil {
			return ErrInvalidSubmission
		}
	}
	return nil
}

// NewApplication materializes a PENDING application from the submission.
// The returned record shares no memory with s.
func (s *Submission) NewApplication(id, receipt string, now time.Time) *Application {
	app := &Application{
		ID:             id,
		Receipt:        receipt,
		Type:           s.Type,
		ContactName:    s.ContactName,
		AccessArea:     s.AccessArea,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Files:          cloneFiles(s.Files),
		VehicleNumber:  s.VehicleNumber,
		VehicleModel:   s.VehicleModel,
		VisitStartTime: s.VisitStartTime,
		VisitEndTime:   s.VisitEndTime,
		GroupVisit:     s.GroupVisit,
		PortAccess:     s.PortAccess,
		GoodsInOut:     s.GoodsInOut,
		VisitR3:        s.VisitR3,
	}
	return app.Clone()
}

// Clone returns a deep copy so callers never share state with a store
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	c.Files = cloneFiles(a.Files)
	if a.GroupVisit != nil {
		gv := *a.GroupVisit
		gv.Visitors = append([]Visitor(nil), a.GroupVisit.Visitors...)
		c.GroupVisit = &gv
	}
	if a.PortAccess != nil {
		pa := *a.PortAccess
		pa.Personnel = append([]Personnel(nil), a.PortAccess.Personnel...)
		c.PortAccess = &pa
	}
	if a.GoodsInOut != nil {
		gi := *a.GoodsInOut
		gi.Items = append([]GoodsItem(nil), a.GoodsInOut.Items...)
		c.GoodsInOut = &gi
	}
	if a.VisitR3 != nil {
		vr := *a.VisitR3
		c.VisitR3 = &vr
	}
	return &c
}

// InLocation rewrites every timestamp on a to the same instant in loc.
// Stores call it so all backends hand out times in one zone.
func (a *Application) InLocation(loc *time.Location) *Application {
	if a == nil || loc == nil {
		return a
	}
	a.CreatedAt = a.CreatedAt.In(loc)
	a.UpdatedAt = a.UpdatedAt.In(loc)
	for i := range a.Files {
		if !a.Files[i].UploadedAt.IsZero() {
			a.Files[i].UploadedAt = a.Files[i].UploadedAt.In(loc)
		}
	}
	if a.GroupVisit != nil {
		a.GroupVisit.VisitStartDate = a.GroupVisit.VisitStartDate.In(loc)
		a.GroupVisit.VisitEndDate = a.GroupVisit.VisitEndDate.In(loc)
	}
	if a.PortAccess != nil {
		a.PortAccess.AccessStart = a.PortAccess.AccessStart.In(loc)
		a.PortAccess.AccessEnd = a.PortAccess.AccessEnd.In(loc)
	}
	if a.VisitR3 != nil {
		a.VisitR3.VisitDatetime = a.VisitR3.VisitDatetime.In(loc)
	}
	return a
}

// ApplicantName picks the most specific person to address in notifications
func (a *Application) ApplicantName() string {
	if a.ContactName != "" {
		return a.ContactName
	}
	switch {
	case a.GroupVisit != nil && a.GroupVisit.Representative != "":
		return a.GroupVisit.Representative
	case a.GroupVisit != nil && a.GroupVisit.EscortName != "":
		return a.GroupVisit.EscortName
	case a.VisitR3 != nil && a.VisitR3.VisitorName != "":
		return a.VisitR3.VisitorName
	}
	return "신청자"
}

// ContactPhone returns the applicant phone number, if the variant has one
func (a *Application) ContactPhone() string {
	switch {
	case a.GroupVisit != nil:
		return a.GroupVisit.ContactPhone
	case a.VisitR3 != nil:
		return a.VisitR3.VisitorPhone
	}
	return ""
}

// ContactEmail returns the applicant email, if the variant has one
func (a *Application) ContactEmail() string {
	if a.VisitR3 != nil {
		return a.VisitR3.ContactEmail
	}
	return ""
}

// ScheduledAt returns when the visit or access is due to begin.
// Goods in/out requests carry no schedule.
func (a *Application) ScheduledAt() (time.Time, bool) {
	switch {
	case a.GroupVisit != nil:
		return a.GroupVisit.VisitStartDate, true
	case a.PortAccess != nil:
		return a.PortAccess.AccessStart, true
	case a.VisitR3 != nil:
		return a.VisitR3.VisitDatetime, true
	}
	return time.Time{}, false
}

// Matches reports whether q (case-insensitive) occurs in the receipt,
// contact name, organization or any listed person's name.
func (a *Application) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}

	fields := []string{a.Receipt, a.ContactName}
	switch {
	case a.GroupVisit != nil:
		fields = append(fields, a.GroupVisit.Organization, a.GroupVisit.Representative)
		for _, v := range a.GroupVisit.Visitors {
			fields = append(fields, v.Name)
		}
	case a.PortAccess != nil:
		for _, p := range a.PortAccess.Personnel {
			fields = append(fields, p.Name, p.Organization)
		}
	case a.GoodsInOut != nil:
		for _, it := range a.GoodsInOut.Items {
			fields = append(fields, it.Name)
		}
	case a.VisitR3 != nil:
		fields = append(fields, a.VisitR3.VisitorName, a.VisitR3.VisitorOrganization)
	}

	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// StatusChange describes a status write. From, when set, turns the write
// into a compare-and-swap against the stored status.
type StatusChange struct {
	Status          Status
	RejectionReason string
	From            Status
}

// Validate enforces the reason-required-for-reject rule
func (c StatusChange) Validate() error {
	if !c.Status.IsValid() {
		return ErrInvalidStatus
	}
	if c.Status == StatusRejected && strings.TrimSpace(c.RejectionReason) == "" {
		return ErrMissingParameter
	}
	return nil
}

// Reason returns the rejection reason to persist: trimmed for REJECTED,
// empty for every other status.
func (c StatusChange) Reason() string {
	if c.Status != StatusRejected {
		return ""
	}
	return strings.TrimSpace(c.RejectionReason)
}

// NextUpdateTime returns a timestamp strictly after prev
func NextUpdateTime(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}
