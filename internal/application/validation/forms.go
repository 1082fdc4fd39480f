package validation

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// commonForm holds the fields every application type shares
type commonForm struct {
	ContactName    string     `json:"contact_name" validate:"omitempty,min=2"`
	AccessArea     string     `json:"access_area" validate:"required,oneof=MAIN_1F MAIN_3F PROCESS SECURITY PIER_1 PIER_2 SUBSTATION OTHER"`
	VehicleNumber  string     `json:"vehicle_number"`
	VehicleModel   string     `json:"vehicle_model"`
	VisitStartTime string     `json:"visit_start_time" validate:"omitempty,hhmm"`
	VisitEndTime   string     `json:"visit_end_time" validate:"omitempty,hhmm"`
	Files          []fileForm `json:"files"`
}

type fileForm struct {
	ID         string `json:"id"`
	Filename   string `json:"filename" validate:"required"`
	FileKey    string `json:"fileKey" validate:"required"`
	FileType   string `json:"fileType" validate:"required"`
	UploadedAt string `json:"uploadedAt"`
}

func (c *commonForm) submission(t entity.Type) *entity.Submission {
	files := make([]entity.FileUpload, 0, len(c.Files))
	for _, f := range c.Files {
		id := f.ID
		if id == "" {
			id = uuid.NewString()
		}
		uploaded, err := time.Parse(time.RFC3339, f.UploadedAt)
		if err != nil {
			uploaded = time.Time{}
		}
		files = append(files, entity.FileUpload{
			ID:         id,
			Filename:   f.Filename,
			FileKey:    f.FileKey,
			FileType:   f.FileType,
			UploadedAt: uploaded,
		})
	}

	return &entity.Submission{
		Type:           t,
		ContactName:    c.ContactName,
		AccessArea:     entity.AccessArea(c.AccessArea),
		Files:          files,
		VehicleNumber:  c.VehicleNumber,
		VehicleModel:   c.VehicleModel,
		VisitStartTime: c.VisitStartTime,
		VisitEndTime:   c.VisitEndTime,
	}
}

func (c *commonForm) files() []child {
	return []child{{name: "files", items: pointers(c.Files)}}
}

type groupVisitForm struct {
	commonForm
	Organization     string        `json:"organization" validate:"required"`
	Representative   string        `json:"representative" validate:"required"`
	ContactPhone     string        `json:"contact_phone" validate:"required"`
	VisitStartDate   string        `json:"visit_start_date" validate:"required,isodate"`
	VisitEndDate     string        `json:"visit_end_date" validate:"required,isodate"`
	VisitPurpose     string        `json:"visit_purpose" validate:"required"`
	VisitLocation    string        `json:"visit_location" validate:"required"`
	EscortName       string        `json:"escort_name" validate:"required"`
	EscortPhone      string        `json:"escort_phone" validate:"required"`
	EscortDepartment string        `json:"escort_department" validate:"required"`
	Visitors         []visitorForm `json:"visitors" validate:"required,min=1"`
}

type visitorForm struct {
	Name         string `json:"name" validate:"required"`
	BirthDate    string `json:"birth_date" validate:"required,isodate"`
	Phone        string `json:"phone" validate:"required"`
	Organization string `json:"organization" validate:"required"`
	Position     string `json:"position"`
}

func (f *groupVisitForm) children() []child {
	return append(f.files(), child{name: "visitors", items: pointers(f.Visitors)})
}

func (f *groupVisitForm) check(loc *time.Location) ValidationErrors {
	start, okStart := parseDate(f.VisitStartDate, loc)
	end, okEnd := parseDate(f.VisitEndDate, loc)
	if okStart && okEnd && end.Before(start) {
		return ValidationErrors{{Field: "visit_end_date", Message: "방문 종료일은 시작일 이후여야 합니다"}}
	}
	return nil
}

func (f *groupVisitForm) submission(loc *time.Location) *entity.Submission {
	s := f.commonForm.submission(entity.TypeGroupVisit)
	start, _ := parseDate(f.VisitStartDate, loc)
	end, _ := parseDate(f.VisitEndDate, loc)

	visitors := make([]entity.Visitor, len(f.Visitors))
	for i, v := range f.Visitors {
		visitors[i] = entity.Visitor(v)
	}

	s.GroupVisit = &entity.GroupVisit{
		Organization:     f.Organization,
		Representative:   f.Representative,
		ContactPhone:     f.ContactPhone,
		VisitStartDate:   start,
		VisitEndDate:     end,
		VisitPurpose:     f.VisitPurpose,
		VisitLocation:    f.VisitLocation,
		EscortName:       f.EscortName,
		EscortPhone:      f.EscortPhone,
		EscortDepartment: f.EscortDepartment,
		Visitors:         visitors,
	}
	return s
}

type portAccessForm struct {
	commonForm
	AccessStart   string          `json:"access_start_datetime" validate:"required,isodatetime"`
	AccessEnd     string          `json:"access_end_datetime" validate:"required,isodatetime"`
	AccessPurpose string          `json:"access_purpose" validate:"required"`
	Personnel     []personnelForm `json:"personnel" validate:"required,min=1"`
}

type personnelForm struct {
	Organization string `json:"organization" validate:"required"`
	Position     string `json:"position" validate:"required"`
	Name         string `json:"name" validate:"required"`
	BirthDate    string `json:"birth_date" validate:"required,isodate"`
	Address      string `json:"address" validate:"required"`
}

func (f *portAccessForm) children() []child {
	return append(f.files(), child{name: "personnel", items: pointers(f.Personnel)})
}

func (f *portAccessForm) check(loc *time.Location) ValidationErrors {
	start, okStart := parseDateTime(f.AccessStart, loc)
	end, okEnd := parseDateTime(f.AccessEnd, loc)
	if okStart && okEnd && end.Before(start) {
		return ValidationErrors{{Field: "access_end_datetime", Message: "출입 종료일시는 시작일시 이후여야 합니다"}}
	}
	return nil
}

func (f *portAccessForm) submission(loc *time.Location) *entity.Submission {
	s := f.commonForm.submission(entity.TypePortAccess)
	start, _ := parseDateTime(f.AccessStart, loc)
	end, _ := parseDateTime(f.AccessEnd, loc)

	personnel := make([]entity.Personnel, len(f.Personnel))
	for i, p := range f.Personnel {
		personnel[i] = entity.Personnel(p)
	}

	s.PortAccess = &entity.PortAccess{
		AccessStart:   start,
		AccessEnd:     end,
		AccessPurpose: f.AccessPurpose,
		Personnel:     personnel,
	}
	return s
}

type goodsInOutForm struct {
	commonForm
	InOutType    string     `json:"inout_type" validate:"required,oneof=IN OUT"`
	UsagePurpose string     `json:"usage_purpose" validate:"required"`
	Items        []itemForm `json:"items" validate:"required,min=1"`
}

type itemForm struct {
	Name          string `json:"name" validate:"required"`
	Specification string `json:"specification" validate:"required"`
	Quantity      int    `json:"quantity" validate:"min=1"`
	Unit          string `json:"unit" validate:"required"`
	Remarks       string `json:"remarks"`
}

func (f *goodsInOutForm) children() []child {
	return append(f.files(), child{name: "items", items: pointers(f.Items)})
}

func (f *goodsInOutForm) check(*time.Location) ValidationErrors {
	return nil
}

func (f *goodsInOutForm) submission(*time.Location) *entity.Submission {
	s := f.commonForm.submission(entity.TypeGoodsInOut)

	items := make([]entity.GoodsItem, len(f.Items))
	for i, it := range f.Items {
		items[i] = entity.GoodsItem(it)
	}

	s.GoodsInOut = &entity.GoodsInOut{
		InOutType:    entity.InOutType(f.InOutType),
		UsagePurpose: f.UsagePurpose,
		Items:        items,
	}
	return s
}

type visitR3Form struct {
	commonForm
	VisitorName         string `json:"visitor_name" validate:"required"`
	VisitorPhone        string `json:"visitor_phone" validate:"required"`
	VisitorOrganization string `json:"visitor_organization" validate:"required"`
	VisitorPosition     string `json:"visitor_position" validate:"required"`
	VisitDatetime       string `json:"visit_datetime" validate:"required,isodatetime"`
	VisitPurpose        string `json:"visit_purpose" validate:"required"`
	ContactEmail        string `json:"contact_email" validate:"omitempty,email"`
}

func (f *visitR3Form) children() []child {
	return f.files()
}

func (f *visitR3Form) check(*time.Location) ValidationErrors {
	return nil
}

func (f *visitR3Form) submission(loc *time.Location) *entity.Submission {
	s := f.commonForm.submission(entity.TypeVisitR3)
	visit, _ := parseDateTime(f.VisitDatetime, loc)

	s.VisitR3 = &entity.VisitR3{
		VisitorName:         f.VisitorName,
		VisitorPhone:        f.VisitorPhone,
		VisitorOrganization: f.VisitorOrganization,
		VisitorPosition:     f.VisitorPosition,
		VisitDatetime:       visit,
		VisitPurpose:        f.VisitPurpose,
		ContactEmail:        f.ContactEmail,
	}
	return s
}
