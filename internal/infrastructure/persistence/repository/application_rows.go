package repository

import (
	"database/sql"
	"time"

	"github.com/garyjia/access-portal/internal/domain/entity"
)

// Row types mirror the tables one to one. Times are written as UTC; the
// repository moves them into its configured zone after loading.

type applicationRow struct {
	ID              string    `db:"id"`
	Receipt         string    `db:"receipt"`
	Type            string    `db:"type"`
	ContactName     string    `db:"contact_name"`
	AccessArea      string    `db:"access_area"`
	Status          string    `db:"status"`
	RejectionReason string    `db:"rejection_reason"`
	VehicleNumber   string    `db:"vehicle_number"`
	VehicleModel    string    `db:"vehicle_model"`
	VisitStartTime  string    `db:"visit_start_time"`
	VisitEndTime    string    `db:"visit_end_time"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func newApplicationRow(app *entity.Application) applicationRow {
	return applicationRow{
		ID:              app.ID,
		Receipt:         app.Receipt,
		Type:            string(app.Type),
		ContactName:     app.ContactName,
		AccessArea:      string(app.AccessArea),
		Status:          string(app.Status),
		RejectionReason: app.RejectionReason,
		VehicleNumber:   app.VehicleNumber,
		VehicleModel:    app.VehicleModel,
		VisitStartTime:  app.VisitStartTime,
		VisitEndTime:    app.VisitEndTime,
		CreatedAt:       app.CreatedAt.UTC(),
		UpdatedAt:       app.UpdatedAt.UTC(),
	}
}

func (row applicationRow) toEntity() *entity.Application {
	return &entity.Application{
		ID:              row.ID,
		Receipt:         row.Receipt,
		Type:            entity.Type(row.Type),
		ContactName:     row.ContactName,
		AccessArea:      entity.AccessArea(row.AccessArea),
		Status:          entity.Status(row.Status),
		RejectionReason: row.RejectionReason,
		VehicleNumber:   row.VehicleNumber,
		VehicleModel:    row.VehicleModel,
		VisitStartTime:  row.VisitStartTime,
		VisitEndTime:    row.VisitEndTime,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
		Files:           []entity.FileUpload{},
	}
}

type fileRow struct {
	ApplicationID string       `db:"application_id"`
	Seq           int          `db:"seq"`
	ID            string       `db:"id"`
	Filename      string       `db:"filename"`
	FileKey       string       `db:"file_key"`
	FileType      string       `db:"file_type"`
	UploadedAt    sql.NullTime `db:"uploaded_at"`
}

func newFileRow(appID string, seq int, f entity.FileUpload) fileRow {
	row := fileRow{
		ApplicationID: appID,
		Seq:           seq,
		ID:            f.ID,
		Filename:      f.Filename,
		FileKey:       f.FileKey,
		FileType:      f.FileType,
	}
	if !f.UploadedAt.IsZero() {
		row.UploadedAt = sql.NullTime{Time: f.UploadedAt.UTC(), Valid: true}
	}
	return row
}

func (row fileRow) toEntity() entity.FileUpload {
	f := entity.FileUpload{
		ID:       row.ID,
		Filename: row.Filename,
		FileKey:  row.FileKey,
		FileType: row.FileType,
	}
	if row.UploadedAt.Valid {
		f.UploadedAt = row.UploadedAt.Time.UTC()
	}
	return f
}

type groupVisitRow struct {
	ApplicationID    string    `db:"application_id"`
	Organization     string    `db:"organization"`
	Representative   string    `db:"representative"`
	ContactPhone     string    `db:"contact_phone"`
	VisitStartDate   time.Time `db:"visit_start_date"`
	VisitEndDate     time.Time `db:"visit_end_date"`
	VisitPurpose     string    `db:"visit_purpose"`
	VisitLocation    string    `db:"visit_location"`
	EscortName       string    `db:"escort_name"`
	EscortPhone      string    `db:"escort_phone"`
	EscortDepartment string    `db:"escort_department"`
}

func newGroupVisitRow(appID string, gv *entity.GroupVisit) groupVisitRow {
	return groupVisitRow{
		ApplicationID:    appID,
		Organization:     gv.Organization,
		Representative:   gv.Representative,
		ContactPhone:     gv.ContactPhone,
		VisitStartDate:   gv.VisitStartDate.UTC(),
		VisitEndDate:     gv.VisitEndDate.UTC(),
		VisitPurpose:     gv.VisitPurpose,
		VisitLocation:    gv.VisitLocation,
		EscortName:       gv.EscortName,
		EscortPhone:      gv.EscortPhone,
		EscortDepartment: gv.EscortDepartment,
	}
}

func (row groupVisitRow) toEntity() *entity.GroupVisit {
	return &entity.GroupVisit{
		Organization:     row.Organization,
		Representative:   row.Representative,
		ContactPhone:     row.ContactPhone,
		VisitStartDate:   row.VisitStartDate.UTC(),
		VisitEndDate:     row.VisitEndDate.UTC(),
		VisitPurpose:     row.VisitPurpose,
		VisitLocation:    row.VisitLocation,
		EscortName:       row.EscortName,
		EscortPhone:      row.EscortPhone,
		EscortDepartment: row.EscortDepartment,
		Visitors:         []entity.Visitor{},
	}
}

type visitorRow struct {
	ApplicationID string `db:"application_id"`
	Seq           int    `db:"seq"`
	Name          string `db:"name"`
	BirthDate     string `db:"birth_date"`
	Phone         string `db:"phone"`
	Organization  string `db:"organization"`
	Position      string `db:"position"`
}

type portAccessRow struct {
	ApplicationID string    `db:"application_id"`
	AccessStart   time.Time `db:"access_start_datetime"`
	AccessEnd     time.Time `db:"access_end_datetime"`
	AccessPurpose string    `db:"access_purpose"`
}

type personnelRow struct {
	ApplicationID string `db:"application_id"`
	Seq           int    `db:"seq"`
	Organization  string `db:"organization"`
	Position      string `db:"position"`
	Name          string `db:"name"`
	BirthDate     string `db:"birth_date"`
	Address       string `db:"address"`
}

type goodsInOutRow struct {
	ApplicationID string `db:"application_id"`
	InOutType     string `db:"inout_type"`
	UsagePurpose  string `db:"usage_purpose"`
}

type goodsItemRow struct {
	ApplicationID string `db:"application_id"`
	Seq           int    `db:"seq"`
	Name          string `db:"name"`
	Specification string `db:"specification"`
	Quantity      int    `db:"quantity"`
	Unit          string `db:"unit"`
	Remarks       string `db:"remarks"`
}

type visitR3Row struct {
	ApplicationID       string    `db:"application_id"`
	VisitorName         string    `db:"visitor_name"`
	VisitorPhone        string    `db:"visitor_phone"`
	VisitorOrganization string    `db:"visitor_organization"`
	VisitorPosition     string    `db:"visitor_position"`
	VisitDatetime       time.Time `db:"visit_datetime"`
	VisitPurpose        string    `db:"visit_purpose"`
	ContactEmail        string    `db:"contact_email"`
}

func newVisitR3Row(appID string, vr *entity.VisitR3) visitR3Row {
	return visitR3Row{
		ApplicationID:       appID,
		VisitorName:         vr.VisitorName,
		VisitorPhone:        vr.VisitorPhone,
		VisitorOrganization: vr.VisitorOrganization,
		VisitorPosition:     vr.VisitorPosition,
		VisitDatetime:       vr.VisitDatetime.UTC(),
		VisitPurpose:        vr.VisitPurpose,
		ContactEmail:        vr.ContactEmail,
	}
}

func (row visitR3Row) toEntity() *entity.VisitR3 {
	return &entity.VisitR3{
		VisitorName:         row.VisitorName,
		VisitorPhone:        row.VisitorPhone,
		VisitorOrganization: row.VisitorOrganization,
		VisitorPosition:     row.VisitorPosition,
		VisitDatetime:       row.VisitDatetime.UTC(),
		VisitPurpose:        row.VisitPurpose,
		ContactEmail:        row.ContactEmail,
	}
}
