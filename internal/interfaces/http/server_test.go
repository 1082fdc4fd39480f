package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/garyjia/access-portal/internal/application/service"
	"github.com/garyjia/access-portal/internal/application/validation"
	"github.com/garyjia/access-portal/internal/auth"
	"github.com/garyjia/access-portal/internal/infrastructure/cache"
	"github.com/garyjia/access-portal/internal/infrastructure/export"
	"github.com/garyjia/access-portal/internal/infrastructure/persistence/memory"
	"github.com/garyjia/access-portal/internal/infrastructure/storage"
	"github.com/garyjia/access-portal/internal/metrics"
	"github.com/garyjia/access-portal/internal/testutil"
	"github.com/garyjia/access-portal/pkg/utils"
)

var kst = time.FixedZone("KST", 9*60*60)

const adminPassword = "s3cret!"

type testEnv struct {
	server  *Server
	clock   *testutil.Clock
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, configure ...func(*ServerConfig, *Dependencies)) *testEnv {
	t.Helper()

	clock := testutil.NewClock(time.Date(2025, 5, 28, 0, 0, 0, 0, time.UTC))
	logger := utils.NewKVLogger(zap.NewNop())
	m := metrics.New()

	store := memory.NewStore(memory.WithClock(clock.Now), memory.WithLocation(kst))
	svc := service.NewApplicationService(
		store,
		cache.NewMemoryCache(cache.WithClock(clock.Now)),
		validation.New(kst),
		nil,
		logger,
		service.WithLocation(kst),
		service.WithMetrics(m),
	)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(auth.Config{
		Username:     "admin",
		PasswordHash: string(hash),
		JWTSecret:    "0123456789abcdef",
	}, auth.WithClock(clock.Now))
	require.NoError(t, err)

	files, err := storage.NewLocalFileStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	cfg := DefaultServerConfig()
	cfg.Mode = gin.TestMode
	cfg.RateLimit.Enabled = false

	deps := Dependencies{
		Applications: svc,
		Auth:         authenticator,
		Files:        files,
		Exporter:     export.NewExcelExporter(kst, zap.NewNop()),
		Metrics:      m,
		Location:     kst,
		Now:          clock.Now,
	}
	for _, fn := range configure {
		fn(&cfg, &deps)
	}

	return &testEnv{server: NewServer(cfg, deps, logger), clock: clock, metrics: m}
}

func (e *testEnv) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/admin/login", LoginRequest{Username: "admin", Password: adminPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) submit(t *testing.T, kind string, payload map[string]any) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/apply/"+kind, payload, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ApplyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Receipt
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func visitR3Payload() map[string]any {
	return map[string]any{
		"access_area":          "MAIN_3F",
		"visitor_name":         "최방문",
		"visitor_phone":        "010-5555-6666",
		"visitor_organization": "IT솔루션",
		"visitor_position":     "대리",
		"visit_datetime":       "2025-05-28T14:00:00",
		"visit_purpose":        "미팅",
		"contact_email":        "visitor@example.com",
	}
}

func goodsPayload() map[string]any {
	return map[string]any{
		"access_area":    "PROCESS",
		"vehicle_number": "12가3456",
		"vehicle_model":  "포터",
		"inout_type":     "IN",
		"usage_purpose":  "정비",
		"items": []map[string]any{
			{"name": "렌치", "specification": "20mm", "quantity": 2, "unit": "EA"},
		},
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	down := newTestEnv(t, func(_ *ServerConfig, d *Dependencies) {
		d.HealthCheck = func(context.Context) error { return errors.New("database is locked") }
	})
	rec = down.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is locked")
}

func TestApply(t *testing.T) {
	env := newTestEnv(t)

	receipt := env.submit(t, "visit-r3", visitR3Payload())
	assert.Equal(t, "VR-20250528-0001", receipt)

	t.Run("validation errors carry details", func(t *testing.T) {
		payload := visitR3Payload()
		delete(payload, "visitor_name")
		payload["contact_email"] = "not-an-email"

		rec := env.do(http.MethodPost, "/api/apply/visit-r3", payload, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body struct {
			Code    string                  `json:"code"`
			Details []validation.FieldError `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, CodeValidation, body.Code)
		assert.True(t, validation.ValidationErrors(body.Details).Has("visitor_name"))
		assert.True(t, validation.ValidationErrors(body.Details).Has("contact_email"))
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/apply/goods-inout", "{", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, CodeValidation, decodeError(t, rec).Code)
	})

	t.Run("unknown kind", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/apply/parking", visitR3Payload(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	receipt := env.submit(t, "visit-r3", visitR3Payload())

	rec := env.do(http.MethodGet, "/api/status", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeMissingReceipt, decodeError(t, rec).Code)

	rec = env.do(http.MethodGet, "/api/status?receipt=VR-20250528-0999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)

	for _, bad := range []string{"12345", "VR-2025-0001", "XX-20250528-0001", "VR-20250528-0000"} {
		rec = env.do(http.MethodGet, "/api/status?receipt="+bad, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Equal(t, CodeInvalidReceipt, decodeError(t, rec).Code, bad)
	}

	rec = env.do(http.MethodGet, "/api/status?receipt="+strings.ToLower(receipt), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Receipt  string                 `json:"receipt"`
		Status   string                 `json:"status"`
		Timeline []service.TimelineStep `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, receipt, body.Receipt)
	assert.Equal(t, "PENDING", body.Status)
	require.Len(t, body.Timeline, 3)
	assert.Equal(t, service.StepCurrent, body.Timeline[0].State)
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{name: "missing password", body: LoginRequest{Username: "admin"}, wantCode: http.StatusBadRequest, wantErr: CodeMissingCredentials},
		{name: "malformed body", body: "nope", wantCode: http.StatusBadRequest, wantErr: CodeMissingCredentials},
		{name: "wrong password", body: LoginRequest{Username: "admin", Password: "guess"}, wantCode: http.StatusUnauthorized, wantErr: CodeInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/admin/login", tt.body, "")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}

	rec := env.do(http.MethodGet, "/api/admin/requests", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, CodeUnauthorized, decodeError(t, rec).Code)

	rec = env.do(http.MethodGet, "/api/admin/requests", nil, "forged.token.value")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := env.login(t)
	rec = env.do(http.MethodGet, "/api/admin/requests", nil, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.clock.Advance(25 * time.Hour)
	rec = env.do(http.MethodGet, "/api/admin/requests", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "tokens expire after a day")
}

func TestProcessRequest(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	receipt := env.submit(t, "visit-r3", visitR3Payload())

	rec := env.do(http.MethodGet, "/api/status?receipt="+receipt, nil, "")
	var status struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	id := status.ID

	errorCases := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{name: "missing id", body: ProcessBody{Action: "approve"}, wantCode: http.StatusBadRequest, wantErr: CodeMissingParameters},
		{name: "missing action", body: ProcessBody{ID: id}, wantCode: http.StatusBadRequest, wantErr: CodeMissingParameters},
		{name: "unknown action", body: ProcessBody{ID: id, Action: "escalate"}, wantCode: http.StatusBadRequest, wantErr: CodeInvalidParameters},
		{name: "reject without reason", body: ProcessBody{ID: id, Action: "reject", Reason: "  "}, wantCode: http.StatusBadRequest, wantErr: CodeMissingReason},
		{name: "unknown id", body: ProcessBody{ID: "missing", Action: "approve"}, wantCode: http.StatusNotFound, wantErr: CodeNotFound},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/admin/requests/approve", tt.body, token)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}

	actions := func() []string {
		rec := env.do(http.MethodGet, "/api/admin/requests/"+id, nil, token)
		require.Equal(t, http.StatusOK, rec.Code)
		var detail struct {
			Actions []string `json:"actions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
		return detail.Actions
	}
	assert.Equal(t, []string{"approve", "reject", "review"}, actions())

	rec = env.do(http.MethodPost, "/api/admin/requests/approve", ProcessBody{ID: id, Action: "review"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"approve", "reject"}, actions())

	rec = env.do(http.MethodPost, "/api/admin/requests/approve", ProcessBody{ID: id, Action: "approve"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Message     string `json:"message"`
		Application struct {
			Status string `json:"status"`
		} `json:"application"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "신청이 승인되었습니다", resp.Message)
	assert.Equal(t, "APPROVED", resp.Application.Status)

	rec = env.do(http.MethodPost, "/api/admin/requests/approve", ProcessBody{ID: id, Action: "reject", Reason: "재검토"}, token)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeInvalidTransition, decodeError(t, rec).Code)

	rec = env.do(http.MethodGet, "/api/admin/requests/"+id, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"APPROVED"`)
	assert.Contains(t, rec.Body.String(), "승인완료")
	assert.Empty(t, actions())
}

func TestListRequests(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.submit(t, "visit-r3", visitR3Payload())
	env.submit(t, "goods-inout", goodsPayload())

	list := func(query string) []map[string]any {
		rec := env.do(http.MethodGet, "/api/admin/requests"+query, nil, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var apps []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
		return apps
	}

	assert.Len(t, list(""), 2)
	assert.Len(t, list("?type=visit_r3"), 1)
	assert.Len(t, list("?area=PROCESS"), 1)
	assert.Len(t, list("?q="+url.QueryEscape("최방문")), 1)
	assert.Len(t, list("?status=APPROVED"), 0)
	assert.Len(t, list("?from=2025-05-28&to=2025-05-28"), 2)
	assert.Len(t, list("?from=2025-05-29"), 0)

	for _, query := range []string{"?type=PARKING", "?status=DONE", "?area=ROOF", "?from=28/05/2025"} {
		rec := env.do(http.MethodGet, "/api/admin/requests"+query, nil, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Equal(t, CodeInvalidParameters, decodeError(t, rec).Code)
	}
}

func TestStatsAndCalendar(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.submit(t, "visit-r3", visitR3Payload())
	env.submit(t, "goods-inout", goodsPayload())

	rec := env.do(http.MethodGet, "/api/admin/stats", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalApplications int            `json:"totalApplications"`
		TypeStats         map[string]int `json:"typeStats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalApplications)
	assert.Equal(t, 1, stats.TypeStats["GOODS_INOUT"])

	rec = env.do(http.MethodGet, "/api/admin/calendar?year=2025&month=5", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var cal service.Calendar
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cal))
	assert.Equal(t, 1, cal.Total, "goods requests have no visit date")
	require.Len(t, cal.Days, 1)
	assert.Equal(t, "2025-05-28", cal.Days[0].Date)

	rec = env.do(http.MethodGet, "/api/admin/calendar", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cal))
	assert.Equal(t, 5, cal.Month, "defaults to the current month")

	for _, query := range []string{"?month=13", "?year=abc", "?status=NOPE"} {
		rec = env.do(http.MethodGet, "/api/admin/calendar"+query, nil, token)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Equal(t, CodeInvalidParameters, decodeError(t, rec).Code)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t)
	env.submit(t, "visit-r3", visitR3Payload())

	rec := env.do(http.MethodGet, "/api/admin/requests/export", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "access-requests-20250528-0900.xlsx")

	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("신청목록")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "VR-20250528-0001", rows[1][0])
}

func newUploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadAndDownload(t *testing.T) {
	env := newTestEnv(t, func(c *ServerConfig, _ *Dependencies) { c.MaxUploadSize = 1024 })
	pdf := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, newUploadRequest(t, "file", "신분증.pdf", pdf))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "신분증.pdf", resp.File.Filename)
	assert.Equal(t, "application/pdf", resp.File.FileType)
	assert.NotEmpty(t, resp.File.ID)

	rec = env.do(http.MethodGet, "/api/files/"+resp.File.FileKey, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pdf, rec.Body.Bytes())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = env.do(http.MethodGet, "/api/files/.env", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cases := []struct {
		name    string
		req     *http.Request
		wantErr string
	}{
		{name: "wrong type", req: newUploadRequest(t, "file", "notes.txt", []byte("plain text")), wantErr: CodeInvalidFileType},
		{name: "too large", req: newUploadRequest(t, "file", "big.pdf", append(pdf, make([]byte, 2048)...)), wantErr: CodeFileTooLarge},
		{name: "wrong field", req: newUploadRequest(t, "attachment", "a.pdf", pdf), wantErr: CodeNoFile},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.server.Router().ServeHTTP(rec, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *ServerConfig, _ *Dependencies) {
		c.RateLimit = RateLimitConfig{Enabled: true, RequestsPerSecond: 0.5, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/api/apply/visit-r3", visitR3Payload(), "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.do(http.MethodPost, "/api/apply/visit-r3", visitR3Payload(), "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, CodeRateLimited, decodeError(t, rec).Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))

	rec = env.do(http.MethodGet, "/api/status?receipt=VR-20250528-0001", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not throttled")

	env.clock.Advance(2 * time.Second)
	rec = env.do(http.MethodPost, "/api/apply/visit-r3", visitR3Payload(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPRateLimiter_SweepsIdleVisitors(t *testing.T) {
	clock := testutil.NewClock(time.Date(2025, 5, 28, 0, 0, 0, 0, time.UTC))
	l := newIPRateLimiter(1, 1, clock.Now)

	ok, _ := l.allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.allow("10.0.0.2")
	assert.True(t, ok)
	assert.Len(t, l.visitors, 2)

	clock.Advance(11 * time.Minute)
	ok, _ = l.allow("10.0.0.3")
	assert.True(t, ok)
	assert.Len(t, l.visitors, 1)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, func(c *ServerConfig, _ *Dependencies) {
		c.AllowedOrigins = []string{"https://portal.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/apply/visit-r3", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.submit(t, "visit-r3", visitR3Payload())

	rec := env.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `blng_portal_applications_submitted_total{type="VISIT_R3"} 1`)
	assert.Contains(t, body, `path="/api/apply/:kind"`)
}
