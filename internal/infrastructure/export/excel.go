package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/report"
	"github.com/garyjia/access-portal/internal/domain/entity"
)

const (
	// ContentType is the xlsx media type
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	applicationsSheet = "신청목록"
	peopleSheet       = "출입인원"
	goodsSheet        = "반입반출물품"

	timeLayout = "2006-01-02 15:04"
)

var applicationHeaders = []interface{}{
	"접수번호", "신청유형", "상태", "신청자", "소속", "출입구역",
	"방문일시", "차량번호", "신청일시", "처리일시", "반려사유",
}

var peopleHeaders = []interface{}{"접수번호", "구분", "성명", "소속", "직위", "생년월일", "연락처"}

var goodsHeaders = []interface{}{"접수번호", "구분", "품명", "규격", "수량", "단위", "비고"}

// ExcelExporter renders applications as an xlsx workbook
type ExcelExporter struct {
	location *time.Location
	logger   *zap.Logger
}

// NewExcelExporter creates an exporter that formats times in loc
func NewExcelExporter(loc *time.Location, logger *zap.Logger) *ExcelExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &ExcelExporter{location: loc, logger: logger}
}

// Filename returns the download name for an export taken at now
func (e *ExcelExporter) Filename(now time.Time) string {
	return fmt.Sprintf("access-requests-%s.xlsx", now.In(e.location).Format("20060102-1504"))
}

// Write renders apps to w
func (e *ExcelExporter) Write(w io.Writer, apps []*entity.Application) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", applicationsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, sheet := range []string{peopleSheet, goodsSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DCE6F1"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	appRows := [][]interface{}{applicationHeaders}
	peopleRows := [][]interface{}{peopleHeaders}
	goodsRows := [][]interface{}{goodsHeaders}

	for _, app := range apps {
		appRows = append(appRows, e.applicationRow(app))
		peopleRows = append(peopleRows, people(app)...)
		goodsRows = append(goodsRows, goods(app)...)
	}

	if err := e.writeSheet(f, applicationsSheet, appRows, headerStyle); err != nil {
		return err
	}
	if err := e.writeSheet(f, peopleSheet, peopleRows, headerStyle); err != nil {
		return err
	}
	if err := e.writeSheet(f, goodsSheet, goodsRows, headerStyle); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Applications exported", zap.Int("count", len(apps)))
	return nil
}

func (e *ExcelExporter) writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		e.logger.Warn("Failed to style header", zap.String("sheet", sheet), zap.Error(err))
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 18); err != nil {
		e.logger.Warn("Failed to set column width", zap.String("sheet", sheet), zap.Error(err))
	}
	return nil
}

func (e *ExcelExporter) applicationRow(app *entity.Application) []interface{} {
	processed := ""
	if app.Status == entity.StatusApproved || app.Status == entity.StatusRejected {
		processed = e.format(app.UpdatedAt)
	}

	return []interface{}{
		app.Receipt,
		app.Type.Label(),
		app.Status.Label(),
		app.ApplicantName(),
		report.Organization(app),
		app.AccessArea.Label(),
		e.scheduled(app),
		app.VehicleNumber,
		e.format(app.CreatedAt),
		processed,
		app.RejectionReason,
	}
}

func (e *ExcelExporter) scheduled(app *entity.Application) string {
	switch {
	case app.GroupVisit != nil:
		return app.GroupVisit.VisitStartDate.In(e.location).Format("2006-01-02") + " ~ " +
			app.GroupVisit.VisitEndDate.In(e.location).Format("2006-01-02")
	case app.PortAccess != nil:
		return e.format(app.PortAccess.AccessStart) + " ~ " + e.format(app.PortAccess.AccessEnd)
	case app.VisitR3 != nil:
		return e.format(app.VisitR3.VisitDatetime)
	}
	return ""
}

func (e *ExcelExporter) format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.location).Format(timeLayout)
}

func people(app *entity.Application) [][]interface{} {
	var rows [][]interface{}
	switch {
	case app.GroupVisit != nil:
		for _, v := range app.GroupVisit.Visitors {
			rows = append(rows, []interface{}{app.Receipt, "방문자", v.Name, v.Organization, v.Position, v.BirthDate, v.Phone})
		}
	case app.PortAccess != nil:
		for _, p := range app.PortAccess.Personnel {
			rows = append(rows, []interface{}{app.Receipt, "출입자", p.Name, p.Organization, p.Position, p.BirthDate, ""})
		}
	case app.VisitR3 != nil:
		v := app.VisitR3
		rows = append(rows, []interface{}{app.Receipt, "방문자", v.VisitorName, v.VisitorOrganization, v.VisitorPosition, "", v.VisitorPhone})
	}
	return rows
}

func goods(app *entity.Application) [][]interface{} {
	if app.GoodsInOut == nil {
		return nil
	}
	direction := "반입"
	if app.GoodsInOut.InOutType == entity.InOutOut {
		direction = "반출"
	}

	rows := make([][]interface{}, 0, len(app.GoodsInOut.Items))
	for _, item := range app.GoodsInOut.Items {
		rows = append(rows, []interface{}{app.Receipt, direction, item.Name, item.Specification, item.Quantity, item.Unit, item.Remarks})
	}
	return rows
}
