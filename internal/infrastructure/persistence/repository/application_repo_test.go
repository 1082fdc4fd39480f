package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/application/service"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/infrastructure/persistence/memory"
	"github.com/garyjia/access-portal/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/access-portal/internal/testutil"
	"github.com/garyjia/access-portal/pkg/database"
)

func openSQLite(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "portal.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Up(""))
	return db
}

func TestApplicationRepository_SQLiteContract(t *testing.T) {
	testutil.RunStoreContract(t, func(t *testing.T, clock *testutil.Clock) port.ApplicationStore {
		db := openSQLite(t)
		return NewApplicationRepository(sqldb.NewDB(db.DB, zap.NewNop()), zap.NewNop(), WithClock(clock.Now))
	})
}

func TestApplicationRepository_PostgresContract(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	testutil.RunStoreContract(t, func(t *testing.T, clock *testutil.Clock) port.ApplicationStore {
		logger := zap.NewNop()
		db, err := database.New(database.Config{Driver: database.DriverPostgres, DSN: dsn, MaxOpenConns: 4}, logger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		require.NoError(t, database.NewMigrator(db, logger).Up(""))

		_, err = db.Exec(`TRUNCATE applications, receipt_sequences, application_files, group_visits,
			group_visit_visitors, port_accesses, port_access_personnel, goods_inouts, goods_items, visit_r3s`)
		require.NoError(t, err)

		return NewApplicationRepository(sqldb.NewDB(db.DB, logger), logger, WithClock(clock.Now))
	})
}

func TestApplicationRepository_ReceiptDayFollowsLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	// 2025-05-28 16:30 UTC is already the 29th in Seoul
	clock := testutil.NewClock(time.Date(2025, 5, 28, 16, 30, 0, 0, time.UTC))

	db := openSQLite(t)
	repo := NewApplicationRepository(sqldb.NewDB(db.DB, zap.NewNop()), zap.NewNop(),
		WithClock(clock.Now), WithLocation(seoul))

	app, err := repo.Create(context.Background(), testutil.GoodsSubmission())
	require.NoError(t, err)
	assert.Equal(t, "GI-20250529-0001", app.Receipt)
}

func TestApplicationRepository_TimesMatchMemoryStore(t *testing.T) {
	ctx := context.Background()
	seoul := time.FixedZone("KST", 9*60*60)
	clock := testutil.NewClock(time.Date(2025, 5, 28, 0, 0, 0, 0, time.UTC))

	db := openSQLite(t)
	repo := NewApplicationRepository(sqldb.NewDB(db.DB, zap.NewNop()), zap.NewNop(),
		WithClock(clock.Now), WithLocation(seoul))
	mem := memory.NewStore(memory.WithClock(clock.Now), memory.WithLocation(seoul))

	group := testutil.GroupVisitSubmission()
	group.GroupVisit.VisitStartDate = time.Date(2025, 6, 2, 0, 0, 0, 0, seoul)
	group.GroupVisit.VisitEndDate = time.Date(2025, 6, 3, 0, 0, 0, 0, seoul)
	visit := testutil.VisitR3Submission()
	visit.VisitR3.VisitDatetime = time.Date(2025, 5, 28, 14, 0, 0, 0, seoul)

	for _, sub := range []*entity.Submission{group, visit} {
		fromSQL, err := repo.Create(ctx, sub)
		require.NoError(t, err)
		fromSQL, err = repo.GetByReceipt(ctx, fromSQL.Receipt)
		require.NoError(t, err)

		fromMem, err := mem.Create(ctx, sub)
		require.NoError(t, err)
		fromMem, err = mem.GetByReceipt(ctx, fromMem.Receipt)
		require.NoError(t, err)

		assert.Equal(t, service.StaffAlertText(fromMem, seoul), service.StaffAlertText(fromSQL, seoul))
		assert.Equal(t, fromMem.CreatedAt.Format(time.RFC3339Nano), fromSQL.CreatedAt.Format(time.RFC3339Nano))

		sqlJSON, err := json.Marshal(variantOf(fromSQL))
		require.NoError(t, err)
		memJSON, err := json.Marshal(variantOf(fromMem))
		require.NoError(t, err)
		assert.JSONEq(t, string(memJSON), string(sqlJSON))
	}

	got, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, app := range got {
		switch {
		case app.GroupVisit != nil:
			assert.Equal(t, "2025-06-02T00:00:00+09:00", app.GroupVisit.VisitStartDate.Format(time.RFC3339))
		case app.VisitR3 != nil:
			assert.Contains(t, service.StaffAlertText(app, seoul), "방문일시: 2025-05-28 14:00")
		}
	}
}

// variantOf drops the per-store identity so payloads can be compared
func variantOf(app *entity.Application) any {
	switch {
	case app.GroupVisit != nil:
		gv := *app.GroupVisit
		return gv
	case app.VisitR3 != nil:
		return *app.VisitR3
	}
	return nil
}

func TestApplicationRepository_SequenceExhausted(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC))

	db := openSQLite(t)
	_, err := db.Exec(`INSERT INTO receipt_sequences (prefix, day, value) VALUES ('VR', '20250528', 9999)`)
	require.NoError(t, err)

	repo := NewApplicationRepository(sqldb.NewDB(db.DB, zap.NewNop()), zap.NewNop(), WithClock(clock.Now))
	_, err = repo.Create(ctx, testutil.VisitR3Submission())
	require.Error(t, err)
	assert.False(t, entity.IsStorageError(err))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "failed create must not leave rows behind")
}

func newMockRepository(t *testing.T) (*ApplicationRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqldb.NewDB(sqlx.NewDb(mockDB, "sqlmock"), zap.NewNop())
	clock := testutil.NewClock(time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC))
	return NewApplicationRepository(db, zap.NewNop(), WithClock(clock.Now)), mock
}

func TestApplicationRepository_DriverErrorsAreStorageErrors(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications")).
		WillReturnError(errors.New("disk I/O error"))

	_, err := repo.GetByReceipt(context.Background(), "GV-20250528-0001")
	require.Error(t, err)
	assert.True(t, entity.IsStorageError(err))
	assert.False(t, errors.Is(err, entity.ErrNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_NotFoundIsNotStorageError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.False(t, entity.IsStorageError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_CreateRollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO receipt_sequences")).
		WithArgs("VR", "20250528").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), testutil.VisitR3Submission())
	require.Error(t, err)
	assert.True(t, entity.IsStorageError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_UpdateStatusRejectsWithoutQuery(t *testing.T) {
	repo, mock := newMockRepository(t)

	_, err := repo.UpdateStatus(context.Background(), "id-1", entity.StatusChange{Status: entity.StatusRejected})
	assert.ErrorIs(t, err, entity.ErrMissingParameter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_UpdateStatusConflict(t *testing.T) {
	repo, mock := newMockRepository(t)
	updated := time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, updated_at FROM applications")).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "updated_at"}).AddRow("APPROVED", updated))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), "id-1", entity.StatusChange{
		Status:          entity.StatusRejected,
		RejectionReason: "late",
		From:            entity.StatusPending,
	})
	assert.ErrorIs(t, err, entity.ErrStatusConflict)
	assert.False(t, entity.IsStorageError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_PostgresPlaceholders(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqldb.NewDB(sqlx.NewDb(mockDB, "postgres"), zap.NewNop())
	repo := NewApplicationRepository(db, zap.NewNop())
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("VALUES ($1, $2, 1)")).
		WithArgs("GV", "20250528").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(3))

	n, err := repo.NextSequence(ctx, "GV", "20250528")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, updated_at FROM applications WHERE id = $1")).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "updated_at"}).AddRow("APPROVED", time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC)))
	mock.ExpectRollback()

	_, err = repo.UpdateStatus(ctx, "id-1", entity.StatusChange{Status: entity.StatusApproved, From: entity.StatusPending})
	assert.ErrorIs(t, err, entity.ErrStatusConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
