package service

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/access-portal/internal/application/dispatcher"
	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/application/report"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/event"
)

type mockStore struct {
	createFunc       func(ctx context.Context, sub *entity.Submission) (*entity.Application, error)
	getByReceiptFunc func(ctx context.Context, receipt string) (*entity.Application, error)
	getByIDFunc      func(ctx context.Context, id string) (*entity.Application, error)
	getAllFunc       func(ctx context.Context) ([]*entity.Application, error)
	updateStatusFunc func(ctx context.Context, id string, change entity.StatusChange) (*entity.Application, error)
	getStatsFunc     func(ctx context.Context) (report.Stats, error)
}

func (m *mockStore) Create(ctx context.Context, sub *entity.Submission) (*entity.Application, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, sub)
	}
	return sub.NewApplication("id-1", "GV-20250528-0001", time.Date(2025, 5, 28, 9, 0, 0, 0, time.UTC)), nil
}

func (m *mockStore) GetByReceipt(ctx context.Context, receipt string) (*entity.Application, error) {
	if m.getByReceiptFunc != nil {
		return m.getByReceiptFunc(ctx, receipt)
	}
	return nil, entity.ErrNotFound
}

func (m *mockStore) GetByID(ctx context.Context, id string) (*entity.Application, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, entity.ErrNotFound
}

func (m *mockStore) GetAll(ctx context.Context) ([]*entity.Application, error) {
	if m.getAllFunc != nil {
		return m.getAllFunc(ctx)
	}
	return []*entity.Application{}, nil
}

func (m *mockStore) UpdateStatus(ctx context.Context, id string, change entity.StatusChange) (*entity.Application, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, change)
	}
	return nil, entity.ErrNotFound
}

func (m *mockStore) GetStats(ctx context.Context) (report.Stats, error) {
	if m.getStatsFunc != nil {
		return m.getStatsFunc(ctx)
	}
	return report.Stats{}, nil
}

type mockCache struct {
	mu      sync.Mutex
	saved   map[string]*entity.Application
	getFunc func(ctx context.Context, receipt string) (*port.CacheEntry, bool, error)
	saveErr error
}

func newMockCache() *mockCache {
	return &mockCache{saved: make(map[string]*entity.Application)}
}

func (m *mockCache) Save(_ context.Context, app *entity.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[app.Receipt] = app.Clone()
	return nil
}

func (m *mockCache) Get(ctx context.Context, receipt string) (*port.CacheEntry, bool, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, receipt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.saved[receipt]
	if !ok {
		return nil, false, nil
	}
	return &port.CacheEntry{Receipt: receipt, Type: app.Type, Status: app.Status, Data: app.Clone()}, true, nil
}

func (m *mockCache) Clear(context.Context) error        { return nil }
func (m *mockCache) Purge(context.Context) (int, error) { return 0, nil }

type mockValidator struct {
	validateFunc func(t entity.Type, raw []byte) (*entity.Submission, error)
}

func (m *mockValidator) Validate(t entity.Type, raw []byte) (*entity.Submission, error) {
	return m.validateFunc(t, raw)
}

// recordingDispatcher captures events instead of running handlers
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(event.Type, dispatcher.Handler)              {}
func (d *recordingDispatcher) SubscribeNamed(event.Type, string, dispatcher.Handler) {}
func (d *recordingDispatcher) Close() error                                          { return nil }

func (d *recordingDispatcher) Dispatch(_ context.Context, evt *event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = d.Dispatch(ctx, evt)
}

func (d *recordingDispatcher) recorded() []*event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*event.Event(nil), d.events...)
}

type mockMetrics struct {
	submitted int
	changed   int
	fallbacks int
}

func (m *mockMetrics) ApplicationSubmitted(entity.Type)           { m.submitted++ }
func (m *mockMetrics) StatusChanged(entity.Status, entity.Status) { m.changed++ }
func (m *mockMetrics) CacheFallback()                             { m.fallbacks++ }

type mockMailer struct {
	mu    sync.Mutex
	sent  []port.Mail
	err   error
	calls int
}

func (m *mockMailer) SendMail(_ context.Context, mail port.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

type mockSMS struct {
	to   []string
	text []string
	err  error
}

func (m *mockSMS) SendSMS(_ context.Context, to, text string) error {
	if m.err != nil {
		return m.err
	}
	m.to = append(m.to, to)
	m.text = append(m.text, text)
	return nil
}

type mockAlerter struct {
	alerts []string
	err    error
}

func (m *mockAlerter) SendAlert(_ context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, text)
	return nil
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
