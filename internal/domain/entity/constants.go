package entity

// Type discriminates the four application variants
type Type string

const (
	TypeGroupVisit Type = "GROUP_VISIT" // 단체방문신청
	TypePortAccess Type = "PORT_ACCESS" // 항만출입신청
	TypeGoodsInOut Type = "GOODS_INOUT" // 물품반입반출신청
	TypeVisitR3    Type = "VISIT_R3"    // 개인방문신청
)

// AllTypes lists every application type in display order
var AllTypes = []Type{TypeGroupVisit, TypePortAccess, TypeGoodsInOut, TypeVisitR3}

var typeCodes = map[Type]string{
	TypeGroupVisit: "GV",
	TypePortAccess: "PA",
	TypeGoodsInOut: "GI",
	TypeVisitR3:    "VR",
}

var typeLabels = map[Type]string{
	TypeGroupVisit: "단체방문신청",
	TypePortAccess: "항만출입신청",
	TypeGoodsInOut: "물품반입반출신청",
	TypeVisitR3:    "개인방문신청",
}

// IsValid returns true if t is one of the known application types
func (t Type) IsValid() bool {
	_, ok := typeCodes[t]
	return ok
}

// Code returns the two-letter receipt prefix for the type
func (t Type) Code() string {
	return typeCodes[t]
}

// Label returns the Korean display label
func (t Type) Label() string {
	return typeLabels[t]
}

func (t Type) String() string {
	return string(t)
}

// TypeFromCode maps a receipt prefix back to its application type
func TypeFromCode(code string) (Type, bool) {
	for t, c := range typeCodes {
		if c == code {
			return t, true
		}
	}
	return "", false
}

// Status is the lifecycle stage of an application
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{StatusPending, StatusUnderReview, StatusApproved, StatusRejected}

var statusLabels = map[Status]string{
	StatusPending:     "접수 대기",
	StatusUnderReview: "검토 중",
	StatusApproved:    "승인",
	StatusRejected:    "반려",
}

// IsValid returns true if s is a known status
func (s Status) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the Korean display label
func (s Status) Label() string {
	return statusLabels[s]
}

func (s Status) String() string {
	return string(s)
}

// AccessArea is the physical zone an applicant requests entry to
type AccessArea string

const (
	AreaMain1F     AccessArea = "MAIN_1F"
	AreaMain3F     AccessArea = "MAIN_3F"
	AreaProcess    AccessArea = "PROCESS"
	AreaSecurity   AccessArea = "SECURITY"
	AreaPier1      AccessArea = "PIER_1"
	AreaPier2      AccessArea = "PIER_2"
	AreaSubstation AccessArea = "SUBSTATION"
	AreaOther      AccessArea = "OTHER"
)

var areaLabels = map[AccessArea]string{
	AreaMain1F:     "본관동1층",
	AreaMain3F:     "본관동3층",
	AreaProcess:    "공정지역",
	AreaSecurity:   "경비동",
	AreaPier1:      "1부두",
	AreaPier2:      "2부두",
	AreaSubstation: "변전소",
	AreaOther:      "기타",
}

// IsValid returns true if a is a known access area
func (a AccessArea) IsValid() bool {
	_, ok := areaLabels[a]
	return ok
}

// Label returns the Korean display label
func (a AccessArea) Label() string {
	return areaLabels[a]
}

// InOutType tells whether goods are brought in or taken out
type InOutType string

const (
	InOutIn  InOutType = "IN"
	InOutOut InOutType = "OUT"
)

// IsValid returns true for IN or OUT
func (t InOutType) IsValid() bool {
	return t == InOutIn || t == InOutOut
}
