package service

import (
	"fmt"
	"time"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/domain/entity"
)

const subjectPrefix = "[보령LNG터미널] 출입 신청이 %s되었습니다 - 접수번호: %s"

const mailFooter = `
문의처: 보령LNG터미널 보안팀
이메일: security@boryeong-lng.co.kr
전화: 041-930-3000`

// SubmissionMail confirms a new application; the date is the day in loc
func SubmissionMail(app *entity.Application, loc *time.Location) port.Mail {
	body := fmt.Sprintf(`보령LNG터미널 출입 신청 접수 안내

안녕하세요, %s님

보령LNG터미널 출입 신청이 정상적으로 접수되었습니다.

접수 정보:
- 접수번호: %s
- 신청일시: %s
- 처리상태: 검토중

처리 현황은 B-LINK 홈페이지에서 접수번호로 확인하실 수 있습니다.
%s`, app.ApplicantName(), app.Receipt, app.CreatedAt.In(loc).Format("2006. 1. 2."), mailFooter)

	return port.Mail{
		To:      app.ContactEmail(),
		Subject: fmt.Sprintf(subjectPrefix, "접수", app.Receipt),
		Body:    body,
	}
}

// ApprovalMail announces an approval with the on-site rules
func ApprovalMail(app *entity.Application) port.Mail {
	body := fmt.Sprintf(`보령LNG터미널 출입 신청 승인 안내

안녕하세요, %s님

보령LNG터미널 출입 신청(접수번호: %s)이 승인되었습니다.

출입 시 준수사항:
- 신분증을 반드시 지참해주세요
- 보안검색에 협조해주세요
- 지정된 구역 외 출입을 금지합니다
- 안전수칙을 준수해주세요
- 촬영 및 녹음을 금지합니다

중요: 출입 당일 신분증과 승인 확인서를 지참하시기 바랍니다.
%s`, app.ApplicantName(), app.Receipt, mailFooter)

	return port.Mail{
		To:      app.ContactEmail(),
		Subject: fmt.Sprintf(subjectPrefix, "승인", app.Receipt),
		Body:    body,
	}
}

// RejectionMail announces a rejection. reason falls back to the stored one.
func RejectionMail(app *entity.Application, reason string) port.Mail {
	if reason == "" {
		reason = app.RejectionReason
	}

	body := fmt.Sprintf(`보령LNG터미널 출입 신청 반려 안내

안녕하세요, %s님

보령LNG터미널 출입 신청(접수번호: %s)이 반려되었습니다.

반려 사유: %s

반려 사유를 확인하신 후 필요한 서류를 보완하여 재신청하실 수 있습니다.
%s`, app.ApplicantName(), app.Receipt, reason, mailFooter)

	return port.Mail{
		To:      app.ContactEmail(),
		Subject: fmt.Sprintf(subjectPrefix, "반려", app.Receipt),
		Body:    body,
	}
}
