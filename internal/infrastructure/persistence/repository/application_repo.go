package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/application/report"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/receipt"
	"github.com/garyjia/access-portal/internal/infrastructure/persistence/sqldb"
)

// detail lookups bind at most this many ids per IN clause
const inChunk = 500

const selectApplication = `
	SELECT id, receipt, type, contact_name, access_area, status,
		rejection_reason, vehicle_number, vehicle_model,
		visit_start_time, visit_end_time, created_at, updated_at
	FROM applications
`

// ApplicationRepository implements port.ApplicationStore on SQLite or PostgreSQL
type ApplicationRepository struct {
	db       *sqldb.DB
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location
	receipts *receipt.Generator
}

// Option configures an ApplicationRepository
type Option func(*ApplicationRepository)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *ApplicationRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the zone used for receipt days, monthly stats and
// every timestamp the repository returns
func WithLocation(loc *time.Location) Option {
	return func(r *ApplicationRepository) {
		if loc != nil {
			r.location = loc
		}
	}
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *sqldb.DB, logger *zap.Logger, opts ...Option) *ApplicationRepository {
	r := &ApplicationRepository{
		db:       db,
		logger:   logger,
		now:      time.Now,
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.receipts = receipt.NewGenerator(r, receipt.WithClock(r.now), receipt.WithLocation(r.location))
	return r
}

// NextSequence bumps the (prefix, day) counter in the caller's transaction
func (r *ApplicationRepository) NextSequence(ctx context.Context, prefix, day string) (int64, error) {
	query := `
		INSERT INTO receipt_sequences (prefix, day, value) VALUES (?, ?, 1)
		ON CONFLICT (prefix, day) DO UPDATE SET value = receipt_sequences.value + 1
		RETURNING value
	`

	var value int64
	if err := sqlx.GetContext(ctx, r.db.Executor(ctx), &value, r.db.Rebind(query), prefix, day); err != nil {
		return 0, fmt.Errorf("failed to advance receipt sequence: %w", err)
	}
	return value, nil
}

// Create persists the application header, its variant rows and files in one transaction
func (r *ApplicationRepository) Create(ctx context.Context, sub *entity.Submission) (*entity.Application, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	var created *entity.Application
	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		rcpt, err := r.receipts.Generate(ctx, sub.Type)
		if err != nil {
			return err
		}

		app := sub.NewApplication(uuid.NewString(), rcpt, r.timestamp())
		if err := r.insert(ctx, app); err != nil {
			return err
		}

		created, err = r.getOne(ctx, "id", app.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, receipt.ErrSequenceExhausted) {
			r.logger.Warn("Receipt sequence exhausted", zap.String("type", sub.Type.String()))
			return nil, err
		}
		r.logger.Error("Failed to create application", zap.String("type", sub.Type.String()), zap.Error(err))
		return nil, entity.NewStorageError("create", err)
	}

	r.logger.Info("Application created",
		zap.String("receipt", created.Receipt),
		zap.String("type", created.Type.String()))
	return created, nil
}

// GetByReceipt retrieves an application by its receipt
func (r *ApplicationRepository) GetByReceipt(ctx context.Context, rcpt string) (*entity.Application, error) {
	app, err := r.getOne(ctx, "receipt", rcpt)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		r.logger.Error("Failed to get application by receipt", zap.String("receipt", rcpt), zap.Error(err))
	}
	return app, entity.NewStorageError("get_by_receipt", err)
}

// GetByID retrieves an application by id
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*entity.Application, error) {
	app, err := r.getOne(ctx, "id", id)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		r.logger.Error("Failed to get application by ID", zap.String("id", id), zap.Error(err))
	}
	return app, entity.NewStorageError("get_by_id", err)
}

// GetAll retrieves every application, newest first
func (r *ApplicationRepository) GetAll(ctx context.Context) ([]*entity.Application, error) {
	var rows []applicationRow
	query := selectApplication + ` ORDER BY created_at DESC, receipt DESC`
	if err := sqlx.SelectContext(ctx, r.db.Executor(ctx), &rows, r.db.Rebind(query)); err != nil {
		r.logger.Error("Failed to list applications", zap.Error(err))
		return nil, entity.NewStorageError("get_all", err)
	}

	apps := make([]*entity.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toEntity())
	}
	if err := r.loadDetails(ctx, apps); err != nil {
		r.logger.Error("Failed to load application details", zap.Error(err))
		return nil, entity.NewStorageError("get_all", err)
	}
	for _, app := range apps {
		app.InLocation(r.location)
	}
	return apps, nil
}

// UpdateStatus writes the new status with a strictly later updated_at
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, change entity.StatusChange) (*entity.Application, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}

	var updated *entity.Application
	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		var current struct {
			Status    entity.Status `db:"status"`
			UpdatedAt time.Time     `db:"updated_at"`
		}
		err := sqlx.GetContext(ctx, r.db.Executor(ctx), &current,
			r.db.Rebind(`SELECT status, updated_at FROM applications WHERE id = ?`), id)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.ErrNotFound
		}
		if err != nil {
			return err
		}
		if change.From != "" && current.Status != change.From {
			return fmt.Errorf("%w: expected %s, found %s", entity.ErrStatusConflict, change.From, current.Status)
		}

		next := entity.NextUpdateTime(current.UpdatedAt.UTC(), r.timestamp())
		query := `UPDATE applications SET status = ?, rejection_reason = ?, updated_at = ? WHERE id = ?`
		args := []interface{}{string(change.Status), change.Reason(), next, id}
		if change.From != "" {
			query += ` AND status = ?`
			args = append(args, string(change.From))
		}

		result, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: status moved before update", entity.ErrStatusConflict)
		}

		updated, err = r.getOne(ctx, "id", id)
		return err
	})
	if err != nil {
		if !errors.Is(err, entity.ErrNotFound) && !errors.Is(err, entity.ErrStatusConflict) {
			r.logger.Error("Failed to update status",
				zap.String("id", id),
				zap.String("status", change.Status.String()),
				zap.Error(err))
		}
		return nil, entity.NewStorageError("update_status", err)
	}

	r.logger.Info("Application status updated",
		zap.String("receipt", updated.Receipt),
		zap.String("status", updated.Status.String()))
	return updated, nil
}

// GetStats aggregates every stored application
func (r *ApplicationRepository) GetStats(ctx context.Context) (report.Stats, error) {
	apps, err := r.GetAll(ctx)
	if err != nil {
		return report.Stats{}, err
	}
	return report.Compute(apps, r.now(), r.location), nil
}

func (r *ApplicationRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func (r *ApplicationRepository) insert(ctx context.Context, app *entity.Application) error {
	exec := r.db.Executor(ctx)

	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO applications (
			id, receipt, type, contact_name, access_area, status,
			rejection_reason, vehicle_number, vehicle_model,
			visit_start_time, visit_end_time, created_at, updated_at
		) VALUES (
			:id, :receipt, :type, :contact_name, :access_area, :status,
			:rejection_reason, :vehicle_number, :vehicle_model,
			:visit_start_time, :visit_end_time, :created_at, :updated_at
		)`, newApplicationRow(app))
	if err != nil {
		return fmt.Errorf("failed to insert application: %w", err)
	}

	for i, f := range app.Files {
		if _, err := sqlx.NamedExecContext(ctx, exec, `
			INSERT INTO application_files (application_id, seq, id, filename, file_key, file_type, uploaded_at)
			VALUES (:application_id, :seq, :id, :filename, :file_key, :file_type, :uploaded_at)`,
			newFileRow(app.ID, i, f)); err != nil {
			return fmt.Errorf("failed to insert file: %w", err)
		}
	}

	switch {
	case app.GroupVisit != nil:
		return r.insertGroupVisit(ctx, exec, app.ID, app.GroupVisit)
	case app.PortAccess != nil:
		return r.insertPortAccess(ctx, exec, app.ID, app.PortAccess)
	case app.GoodsInOut != nil:
		return r.insertGoodsInOut(ctx, exec, app.ID, app.GoodsInOut)
	case app.VisitR3 != nil:
		return r.insertVisitR3(ctx, exec, app.ID, app.VisitR3)
	}
	return nil
}

func (r *ApplicationRepository) insertGroupVisit(ctx context.Context, exec sqlx.ExtContext, id string, gv *entity.GroupVisit) error {
	if _, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO group_visits (
			application_id, organization, representative, contact_phone,
			visit_start_date, visit_end_date, visit_purpose, visit_location,
			escort_name, escort_phone, escort_department
		) VALUES (
			:application_id, :organization, :representative, :contact_phone,
			:visit_start_date, :visit_end_date, :visit_purpose, :visit_location,
			:escort_name, :escort_phone, :escort_department
		)`, newGroupVisitRow(id, gv)); err != nil {
		return fmt.Errorf("failed to insert group visit: %w", err)
	}

	for i, v := range gv.Visitors {
		if _, err := sqlx.NamedExecContext(ctx, exec, `
			INSERT INTO group_visit_visitors (application_id, seq, name, birth_date, phone, organization, position)
			VALUES (:application_id, :seq, :name, :birth_date, :phone, :organization, :position)`,
			visitorRow{ApplicationID: id, Seq: i, Name: v.Name, BirthDate: v.BirthDate,
				Phone: v.Phone, Organization: v.Organization, Position: v.Position}); err != nil {
			return fmt.Errorf("failed to insert visitor: %w", err)
		}
	}
	return nil
}

func (r *ApplicationRepository) insertPortAccess(ctx context.Context, exec sqlx.ExtContext, id string, pa *entity.PortAccess) error {
	if _, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO port_accesses (application_id, access_start_datetime, access_end_datetime, access_purpose)
		VALUES (:application_id, :access_start_datetime, :access_end_datetime, :access_purpose)`,
		portAccessRow{ApplicationID: id, AccessStart: pa.AccessStart.UTC(), AccessEnd: pa.AccessEnd.UTC(),
			AccessPurpose: pa.AccessPurpose}); err != nil {
		return fmt.Errorf("failed to insert port access: %w", err)
	}

	for i, p := range pa.Personnel {
		if _, err := sqlx.NamedExecContext(ctx, exec, `
			INSERT INTO port_access_personnel (application_id, seq, organization, position, name, birth_date, address)
			VALUES (:application_id, :seq, :organization, :position, :name, :birth_date, :address)`,
			personnelRow{ApplicationID: id, Seq: i, Organization: p.Organization, Position: p.Position,
				Name: p.Name, BirthDate: p.BirthDate, Address: p.Address}); err != nil {
			return fmt.Errorf("failed to insert personnel: %w", err)
		}
	}
	return nil
}

func (r *ApplicationRepository) insertGoodsInOut(ctx context.Context, exec sqlx.ExtContext, id string, gi *entity.GoodsInOut) error {
	if _, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO goods_inouts (application_id, inout_type, usage_purpose)
		VALUES (:application_id, :inout_type, :usage_purpose)`,
		goodsInOutRow{ApplicationID: id, InOutType: string(gi.InOutType), UsagePurpose: gi.UsagePurpose}); err != nil {
		return fmt.Errorf("failed to insert goods in/out: %w", err)
	}

	for i, it := range gi.Items {
		if _, err := sqlx.NamedExecContext(ctx, exec, `
			INSERT INTO goods_items (application_id, seq, name, specification, quantity, unit, remarks)
			VALUES (:application_id, :seq, :name, :specification, :quantity, :unit, :remarks)`,
			goodsItemRow{ApplicationID: id, Seq: i, Name: it.Name, Specification: it.Specification,
				Quantity: it.Quantity, Unit: it.Unit, Remarks: it.Remarks}); err != nil {
			return fmt.Errorf("failed to insert goods item: %w", err)
		}
	}
	return nil
}

func (r *ApplicationRepository) insertVisitR3(ctx context.Context, exec sqlx.ExtContext, id string, vr *entity.VisitR3) error {
	if _, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO visit_r3s (
			application_id, visitor_name, visitor_phone, visitor_organization,
			visitor_position, visit_datetime, visit_purpose, contact_email
		) VALUES (
			:application_id, :visitor_name, :visitor_phone, :visitor_organization,
			:visitor_position, :visit_datetime, :visit_purpose, :contact_email
		)`, newVisitR3Row(id, vr)); err != nil {
		return fmt.Errorf("failed to insert individual visit: %w", err)
	}
	return nil
}

// getOne loads one application by an indexed unique column
func (r *ApplicationRepository) getOne(ctx context.Context, column, value string) (*entity.Application, error) {
	var row applicationRow
	query := selectApplication + ` WHERE ` + column + ` = ?`
	err := sqlx.GetContext(ctx, r.db.Executor(ctx), &row, r.db.Rebind(query), value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	app := row.toEntity()
	if err := r.loadDetails(ctx, []*entity.Application{app}); err != nil {
		return nil, err
	}
	return app.InLocation(r.location), nil
}

// loadDetails attaches files and variant rows to apps in bulk
func (r *ApplicationRepository) loadDetails(ctx context.Context, apps []*entity.Application) error {
	for start := 0; start < len(apps); start += inChunk {
		end := start + inChunk
		if end > len(apps) {
			end = len(apps)
		}
		if err := r.loadChunk(ctx, apps[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ApplicationRepository) loadChunk(ctx context.Context, apps []*entity.Application) error {
	byID := make(map[string]*entity.Application, len(apps))
	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		byID[app.ID] = app
		ids = append(ids, app.ID)
	}

	var files []fileRow
	if err := r.selectIn(ctx, &files, `
		SELECT application_id, seq, id, filename, file_key, file_type, uploaded_at
		FROM application_files WHERE application_id IN (?) ORDER BY application_id, seq`, ids); err != nil {
		return fmt.Errorf("failed to load files: %w", err)
	}
	for _, f := range files {
		app := byID[f.ApplicationID]
		app.Files = append(app.Files, f.toEntity())
	}

	var groups []groupVisitRow
	if err := r.selectIn(ctx, &groups, `
		SELECT application_id, organization, representative, contact_phone,
			visit_start_date, visit_end_date, visit_purpose, visit_location,
			escort_name, escort_phone, escort_department
		FROM group_visits WHERE application_id IN (?)`, ids); err != nil {
		return fmt.Errorf("failed to load group visits: %w", err)
	}
	for _, g := range groups {
		byID[g.ApplicationID].GroupVisit = g.toEntity()
	}

	var visitors []visitorRow
	if err := r.selectIn(ctx, &visitors, `
		SELECT application_id, seq, name, birth_date, phone, organization, position
		FROM group_visit_visitors WHERE application_id IN (?) ORDER BY application_id, seq`, ids); err != nil {
		return fmt.Errorf("failed to load visitors: %w", err)
	}
	for _, v := range visitors {
		if gv := byID[v.ApplicationID].GroupVisit; gv != nil {
			gv.Visitors = append(gv.Visitors, entity.Visitor{
				Name:         v.Name,
				BirthDate:    v.BirthDate,
				Phone:        v.Phone,
				Organization: v.Organization,
				Position:     v.Position,
			})
		}
	}

	var ports []portAccessRow
	if err := r.selectIn(ctx, &ports, `
		SELECT application_id, access_start_datetime, access_end_datetime, access_purpose
		FROM port_accesses WHERE application_id IN (?)`, ids); err != nil {
		return fmt.Errorf("failed to load port accesses: %w", err)
	}
	for _, p := range ports {
		byID[p.ApplicationID].PortAccess = &entity.PortAccess{
			AccessStart:   p.AccessStart.UTC(),
			AccessEnd:     p.AccessEnd.UTC(),
			AccessPurpose: p.AccessPurpose,
			Personnel:     []entity.Personnel{},
		}
	}

	var personnel []personnelRow
	if err := r.selectIn(ctx, &personnel, `
		SELECT application_id, seq, organization, position, name, birth_date, address
		FROM port_access_personnel WHERE application_id IN (?) ORDER BY application_id, seq`, ids); err != nil {
		return fmt.Errorf("failed to load personnel: %w", err)
	}
	for _, p := range personnel {
		if pa := byID[p.ApplicationID].PortAccess; pa != nil {
			pa.Personnel = append(pa.Personnel, entity.Personnel{
				Organization: p.Organization,
				Position:     p.Position,
				Name:         p.Name,
				BirthDate:    p.BirthDate,
				Address:      p.Address,
			})
		}
	}

	var goods []goodsInOutRow
	if err := r.selectIn(ctx, &goods, `
		SELECT application_id, inout_type, usage_purpose
		FROM goods_inouts WHERE application_id IN (?)`, ids); err != nil {
		return fmt.Errorf("failed to load goods in/out: %w", err)
	}
	for _, g := range goods {
		byID[g.ApplicationID].GoodsInOut = &entity.GoodsInOut{
			InOutType:    entity.InOutType(g.InOutType),
			UsagePurpose: g.UsagePurpose,
			Items:        []entity.GoodsItem{},
		}
	}

	var items []goodsItemRow
	if err := r.selectIn(ctx, &items, `
		SELECT application_id, seq, name, specification, quantity, unit, remarks
		FROM goods_items WHERE application_id IN (?) ORDER BY application_id, seq`, ids); err != nil {
		return fmt.Errorf("failed to load goods items: %w", err)
	}
	for _, it := range items {
		if gi := byID[it.ApplicationID].GoodsInOut; gi != nil {
			gi.Items = append(gi.Items, entity.GoodsItem{
				Name:          it.Name,
				Specification: it.Specification,
				Quantity:      it.Quantity,
				Unit:          it.Unit,
				Remarks:       it.Remarks,
			})
		}
	}

	var visits []visitR3Row
	if err := r.selectIn(ctx, &visits, `
		SELECT application_id, visitor_name, visitor_phone, visitor_organization,
			visitor_position, visit_datetime, visit_purpose, contact_email
		FROM visit_r3s WHERE application_id IN (?)`, ids); err != nil {
		return fmt.Errorf("failed to load individual visits: %w", err)
	}
	for _, v := range visits {
		byID[v.ApplicationID].VisitR3 = v.toEntity()
	}

	return nil
}

func (r *ApplicationRepository) selectIn(ctx context.Context, dest interface{}, query string, ids []string) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, r.db.Executor(ctx), dest, r.db.Rebind(query), args...)
}

var (
	_ port.ApplicationStore = (*ApplicationRepository)(nil)
	_ receipt.Sequencer     = (*ApplicationRepository)(nil)
)
