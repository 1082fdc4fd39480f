package port

import (
	"context"

	"github.com/garyjia/access-portal/internal/application/report"
	"github.com/garyjia/access-portal/internal/domain/entity"
)

// ApplicationStore is the authoritative owner of persisted applications.
// Every returned record is a copy; mutating it never affects the store.
type ApplicationStore interface {
	// Create assigns id, receipt, PENDING status and timestamps, then persists
	// the application and all of its child rows atomically
	Create(ctx context.Context, sub *entity.Submission) (*entity.Application, error)

	// GetByReceipt returns entity.ErrNotFound when no application has the receipt
	GetByReceipt(ctx context.Context, receipt string) (*entity.Application, error)

	// GetByID returns entity.ErrNotFound when no application has the id
	GetByID(ctx context.Context, id string) (*entity.Application, error)

	// GetAll returns every application, newest created_at first
	GetAll(ctx context.Context) ([]*entity.Application, error)

	// UpdateStatus writes status, rejection reason and a strictly later updated_at
	UpdateStatus(ctx context.Context, id string, change entity.StatusChange) (*entity.Application, error)

	// GetStats aggregates the whole collection for the dashboard
	GetStats(ctx context.Context) (report.Stats, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction carried by the context.
	// Nested calls join the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
