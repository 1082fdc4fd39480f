package validation

import (
	"fmt"
	"strings"
)

// FieldError is one failed rule, addressed by a dotted field path
// such as "visitors.1.birth_date".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every failure found in a payload
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the failing field paths in report order
func (v ValidationErrors) Fields() []string {
	out := make([]string, len(v))
	for i, fe := range v {
		out[i] = fe.Field
	}
	return out
}

// Has reports whether field failed at least one rule
func (v ValidationErrors) Has(field string) bool {
	for _, fe := range v {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// covers reports whether field, or a value containing it, already failed
func (v ValidationErrors) covers(field string) bool {
	for _, fe := range v {
		if fe.Field == field || strings.HasPrefix(field, fe.Field+".") {
			return true
		}
	}
	return false
}

// Korean messages shown by the public forms, keyed by scope-qualified field
var requiredMessages = map[string]string{
	"access_area":           "출입지역을 선택해주세요",
	"organization":          "기관명을 입력해주세요",
	"representative":        "대표자명을 입력해주세요",
	"contact_phone":         "연락처를 입력해주세요",
	"visit_start_date":      "방문 시작일을 선택해주세요",
	"visit_end_date":        "방문 종료일을 선택해주세요",
	"visit_purpose":         "방문 목적을 입력해주세요",
	"visit_location":        "방문 장소를 입력해주세요",
	"escort_name":           "인솔자명을 입력해주세요",
	"escort_phone":          "인솔자 연락처를 입력해주세요",
	"escort_department":     "인솔자 소속을 입력해주세요",
	"visitors":              "최소 1명의 방문자를 추가해주세요",
	"access_start_datetime": "출입 시작일시를 선택해주세요",
	"access_end_datetime":   "출입 종료일시를 선택해주세요",
	"access_purpose":        "출입 목적을 입력해주세요",
	"personnel":             "최소 1명의 인원을 추가해주세요",
	"inout_type":            "반입/반출 구분을 선택해주세요",
	"usage_purpose":         "사용 목적을 입력해주세요",
	"items":                 "최소 1개의 품목을 추가해주세요",
	"visitor_name":          "방문자명을 입력해주세요",
	"visitor_phone":         "연락처를 입력해주세요",
	"visitor_organization":  "소속을 입력해주세요",
	"visitor_position":      "직책을 입력해주세요",
	"visit_datetime":        "방문일시를 선택해주세요",

	"visitors.name":         "성명을 입력해주세요",
	"visitors.birth_date":   "생년월일을 입력해주세요",
	"visitors.phone":        "연락처를 입력해주세요",
	"visitors.organization": "소속을 입력해주세요",

	"personnel.organization": "소속을 입력해주세요",
	"personnel.position":     "직책을 입력해주세요",
	"personnel.name":         "성명을 입력해주세요",
	"personnel.birth_date":   "생년월일을 입력해주세요",
	"personnel.address":      "주소를 입력해주세요",

	"items.name":          "품목명을 입력해주세요",
	"items.specification": "규격을 입력해주세요",
	"items.unit":          "단위를 입력해주세요",

	"files.filename": "파일명이 없습니다",
	"files.fileKey":  "파일 키가 없습니다",
	"files.fileType": "파일 형식이 없습니다",
}

func message(scope, field, tag string) string {
	key := field
	if scope != "" {
		key = scope + "." + field
	}

	switch tag {
	case "required":
		if msg, ok := requiredMessages[key]; ok {
			return msg
		}
		return "필수 입력 항목입니다"
	case "min":
		switch key {
		case "contact_name":
			return "담당자명은 2자 이상 입력해주세요"
		case "items.quantity":
			return "수량은 1 이상이어야 합니다"
		}
		if msg, ok := requiredMessages[key]; ok {
			return msg
		}
		return "값이 너무 작습니다"
	case "oneof":
		if msg, ok := requiredMessages[key]; ok {
			return msg
		}
		return "허용되지 않는 값입니다"
	case "isodate":
		if strings.HasSuffix(field, "birth_date") {
			return "생년월일 형식이 올바르지 않습니다"
		}
		return "날짜 형식이 올바르지 않습니다 (YYYY-MM-DD)"
	case "isodatetime":
		return "일시 형식이 올바르지 않습니다"
	case "hhmm":
		return "시간 형식이 올바르지 않습니다 (HH:MM)"
	case "email":
		return "이메일 형식이 올바르지 않습니다"
	}
	return "입력값이 올바르지 않습니다"
}
