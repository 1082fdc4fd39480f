package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/access-portal/internal/application/dispatcher"
	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/application/report"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/event"
	"github.com/garyjia/access-portal/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// PayloadValidator turns a raw request body into a checked submission
type PayloadValidator interface {
	Validate(t entity.Type, raw []byte) (*entity.Submission, error)
}

// Metrics receives business counters. Defaults to a no-op.
type Metrics interface {
	ApplicationSubmitted(t entity.Type)
	StatusChanged(from, to entity.Status)
	CacheFallback()
}

// ApplicationService is the use-case layer for visitors and the admin console
type ApplicationService interface {
	Submit(ctx context.Context, t entity.Type, raw []byte) (*entity.Application, error)
	GetByReceipt(ctx context.Context, receipt string) (*Lookup, error)
	GetByID(ctx context.Context, id string) (*entity.Application, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.Application, error)
	Transition(ctx context.Context, id string, trigger workflow.Trigger, reason string) (*entity.Application, error)
	Approve(ctx context.Context, id string) (*entity.Application, error)
	Reject(ctx context.Context, id, reason string) (*entity.Application, error)
	StartReview(ctx context.Context, id string) (*entity.Application, error)
	Stats(ctx context.Context) (report.Stats, error)
	Calendar(ctx context.Context, year, month int, status entity.Status) (*Calendar, error)
}

// Lookup is a status-page result. Cached is set when the store was
// unavailable and the record came from the cache mirror.
type Lookup struct {
	Application *entity.Application
	Cached      bool
}

// ListFilter narrows the admin list. Zero fields match everything.
// From is inclusive and To exclusive, both compared against created_at.
type ListFilter struct {
	Type       entity.Type
	Status     entity.Status
	AccessArea entity.AccessArea
	Query      string
	From       time.Time
	To         time.Time
}

// Match reports whether app passes every set criterion
func (f ListFilter) Match(app *entity.Application) bool {
	if f.Type != "" && app.Type != f.Type {
		return false
	}
	if f.Status != "" && app.Status != f.Status {
		return false
	}
	if f.AccessArea != "" && app.AccessArea != f.AccessArea {
		return false
	}
	if !f.From.IsZero() && app.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !app.CreatedAt.Before(f.To) {
		return false
	}
	return app.Matches(f.Query)
}

type applicationServiceImpl struct {
	store      port.ApplicationStore
	cache      port.ApplicationCache
	validator  PayloadValidator
	dispatcher dispatcher.Dispatcher
	logger     Logger
	metrics    Metrics
	location   *time.Location
}

// Option configures the application service
type Option func(*applicationServiceImpl)

// WithMetrics records business counters
func WithMetrics(m Metrics) Option {
	return func(s *applicationServiceImpl) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLocation sets the zone used to place visits on calendar days
func WithLocation(loc *time.Location) Option {
	return func(s *applicationServiceImpl) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewApplicationService creates a new ApplicationService. cache and
// dispatcher may be nil.
func NewApplicationService(
	store port.ApplicationStore,
	cache port.ApplicationCache,
	validator PayloadValidator,
	dispatcher dispatcher.Dispatcher,
	logger Logger,
	opts ...Option,
) ApplicationService {
	s := &applicationServiceImpl{
		store:      store,
		cache:      cache,
		validator:  validator,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    nopMetrics{},
		location:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates raw as a payload of type t and persists it as PENDING
func (s *applicationServiceImpl) Submit(ctx context.Context, t entity.Type, raw []byte) (*entity.Application, error) {
	sub, err := s.validator.Validate(t, raw)
	if err != nil {
		s.logger.Info("Submission rejected by validation", "type", t, "error", err)
		return nil, err
	}

	app, err := s.store.Create(ctx, sub)
	if err != nil {
		s.logger.Error("Failed to create application", "error", err, "type", t)
		return nil, err
	}

	s.mirror(ctx, app)
	s.metrics.ApplicationSubmitted(app.Type)
	s.publish(ctx, event.NewEvent(event.TypeApplicationSubmitted, app, map[string]interface{}{
		event.PayloadType:   app.Type,
		event.PayloadStatus: app.Status,
	}))

	s.logger.Info("Application submitted", "receipt", app.Receipt, "type", app.Type)
	return app, nil
}

// GetByReceipt reads from the store and falls back to the cache only when
// the store itself fails
func (s *applicationServiceImpl) GetByReceipt(ctx context.Context, receipt string) (*Lookup, error) {
	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		return nil, fmt.Errorf("%w: receipt", entity.ErrMissingParameter)
	}

	app, err := s.store.GetByReceipt(ctx, receipt)
	if err == nil {
		s.mirror(ctx, app)
		return &Lookup{Application: app}, nil
	}
	if !entity.IsStorageError(err) || s.cache == nil {
		return nil, err
	}

	s.logger.Error("Store unavailable, trying cache", "error", err, "receipt", receipt)
	entry, ok, cacheErr := s.cache.Get(ctx, receipt)
	if cacheErr != nil {
		s.logger.Error("Cache lookup failed", "error", cacheErr, "receipt", receipt)
		return nil, err
	}
	if !ok || entry.Data == nil {
		return nil, err
	}

	s.metrics.CacheFallback()
	return &Lookup{Application: entry.Data, Cached: true}, nil
}

func (s *applicationServiceImpl) GetByID(ctx context.Context, id string) (*entity.Application, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id", entity.ErrMissingParameter)
	}
	return s.store.GetByID(ctx, id)
}

// List returns applications passing filter, newest first
func (s *applicationServiceImpl) List(ctx context.Context, filter ListFilter) ([]*entity.Application, error) {
	all, err := s.store.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list applications", "error", err)
		return nil, err
	}

	out := make([]*entity.Application, 0, len(all))
	for _, app := range all {
		if filter.Match(app) {
			out = append(out, app)
		}
	}
	return out, nil
}

// Transition fires trigger against the stored status and persists the
// result as a compare-and-swap, so a concurrent review cannot be overwritten
func (s *applicationServiceImpl) Transition(ctx context.Context, id string, trigger workflow.Trigger, reason string) (*entity.Application, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id", entity.ErrMissingParameter)
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := workflow.Next(ctx, current.Status, trigger, reason)
	if err != nil {
		s.logger.Info("Transition refused", "receipt", current.Receipt, "status", current.Status, "trigger", trigger, "error", err)
		return nil, err
	}

	updated, err := s.store.UpdateStatus(ctx, id, entity.StatusChange{
		Status:          next,
		RejectionReason: reason,
		From:            current.Status,
	})
	if err != nil {
		if !errors.Is(err, entity.ErrStatusConflict) {
			s.logger.Error("Failed to update status", "error", err, "id", id, "status", next)
		}
		return nil, err
	}

	s.mirror(ctx, updated)
	s.metrics.StatusChanged(current.Status, updated.Status)
	s.publish(ctx, event.NewEvent(event.TypeApplicationStatusChanged, updated, map[string]interface{}{
		event.PayloadPreviousStatus: current.Status,
		event.PayloadStatus:         updated.Status,
		event.PayloadReason:         updated.RejectionReason,
	}))

	s.logger.Info("Application status changed",
		"receipt", updated.Receipt,
		"from", current.Status,
		"to", updated.Status,
	)
	return updated, nil
}

func (s *applicationServiceImpl) Approve(ctx context.Context, id string) (*entity.Application, error) {
	return s.Transition(ctx, id, workflow.TriggerApprove, "")
}

func (s *applicationServiceImpl) Reject(ctx context.Context, id, reason string) (*entity.Application, error) {
	return s.Transition(ctx, id, workflow.TriggerReject, reason)
}

func (s *applicationServiceImpl) StartReview(ctx context.Context, id string) (*entity.Application, error) {
	return s.Transition(ctx, id, workflow.TriggerStartReview, "")
}

func (s *applicationServiceImpl) Stats(ctx context.Context) (report.Stats, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		s.logger.Error("Failed to compute stats", "error", err)
		return report.Stats{}, err
	}
	return stats, nil
}

// mirror refreshes the cache copy; failures only cost fallback coverage
func (s *applicationServiceImpl) mirror(ctx context.Context, app *entity.Application) {
	if s.cache == nil || app == nil {
		return
	}
	if err := s.cache.Save(ctx, app); err != nil {
		s.logger.Error("Failed to cache application", "error", err, "receipt", app.Receipt)
	}
}

func (s *applicationServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.DispatchAsync(ctx, evt)
}

type nopMetrics struct{}

func (nopMetrics) ApplicationSubmitted(entity.Type)           {}
func (nopMetrics) StatusChanged(entity.Status, entity.Status) {}
func (nopMetrics) CacheFallback()                             {}
