// Package memory provides an in-process ApplicationStore for development
// and tests. Each Store is independent; nothing is shared between instances.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/application/report"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/receipt"
)

// Store keeps applications in maps guarded by a RWMutex
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*entity.Application
	byReceipt map[string]string

	seqMu     sync.Mutex
	sequences map[string]int64

	now      func() time.Time
	location *time.Location
	receipts *receipt.Generator
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLocation sets the zone used for receipt days, monthly stats and
// every timestamp the store returns
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		byID:      make(map[string]*entity.Application),
		byReceipt: make(map[string]string),
		sequences: make(map[string]int64),
		now:       time.Now,
		location:  time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.receipts = receipt.NewGenerator(s, receipt.WithClock(s.now), receipt.WithLocation(s.location))
	return s
}

// Reset drops every application and counter
func (s *Store) Reset() {
	s.mu.Lock()
	s.byID = make(map[string]*entity.Application)
	s.byReceipt = make(map[string]string)
	s.mu.Unlock()

	s.seqMu.Lock()
	s.sequences = make(map[string]int64)
	s.seqMu.Unlock()
}

// NextSequence implements receipt.Sequencer
func (s *Store) NextSequence(_ context.Context, prefix, day string) (int64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	key := prefix + "-" + day
	s.sequences[key]++
	return s.sequences[key], nil
}

func (s *Store) Create(ctx context.Context, sub *entity.Submission) (*entity.Application, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	rcpt, err := s.receipts.Generate(ctx, sub.Type)
	if err != nil {
		return nil, err
	}

	app := sub.NewApplication(uuid.NewString(), rcpt, s.timestamp()).InLocation(s.location)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byReceipt[rcpt]; exists {
		return nil, fmt.Errorf("receipt %s already issued", rcpt)
	}
	s.byID[app.ID] = app
	s.byReceipt[rcpt] = app.ID

	return app.Clone(), nil
}

func (s *Store) GetByReceipt(_ context.Context, rcpt string) (*entity.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byReceipt[rcpt]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *Store) GetByID(_ context.Context, id string) (*entity.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.byID[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *Store) GetAll(_ context.Context) ([]*entity.Application, error) {
	s.mu.RLock()
	apps := make([]*entity.Application, 0, len(s.byID))
	for _, app := range s.byID {
		apps = append(apps, app.Clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(apps)
	return apps, nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, change entity.StatusChange) (*entity.Application, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.byID[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if change.From != "" && app.Status != change.From {
		return nil, fmt.Errorf("%w: expected %s, found %s", entity.ErrStatusConflict, change.From, app.Status)
	}

	app.Status = change.Status
	app.RejectionReason = change.Reason()
	app.UpdatedAt = entity.NextUpdateTime(app.UpdatedAt, s.timestamp()).In(s.location)

	return app.Clone(), nil
}

func (s *Store) GetStats(ctx context.Context) (report.Stats, error) {
	apps, err := s.GetAll(ctx)
	if err != nil {
		return report.Stats{}, err
	}
	return report.Compute(apps, s.now(), s.location), nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func sortNewestFirst(apps []*entity.Application) {
	sort.SliceStable(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].Receipt > apps[j].Receipt
		}
		return apps[i].CreatedAt.After(apps[j].CreatedAt)
	})
}

var (
	_ port.ApplicationStore = (*Store)(nil)
	_ receipt.Sequencer     = (*Store)(nil)
)
