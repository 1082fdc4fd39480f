package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/access-portal/internal/application/service"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/workflow"
	"github.com/garyjia/access-portal/internal/infrastructure/export"
)

// LoginRequest is the admin login body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the issued bearer token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      AdminUser `json:"user"`
	Message   string    `json:"message"`
}

// AdminUser describes the logged-in console account
type AdminUser struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ProcessBody is the body of POST /api/admin/requests/approve
type ProcessBody struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// ProcessResponse reports the updated application
type ProcessResponse struct {
	Message     string              `json:"message"`
	Application *entity.Application `json:"application"`
}

var actionMessages = map[workflow.Trigger]string{
	workflow.TriggerApprove:     "신청이 승인되었습니다",
	workflow.TriggerReject:      "신청이 반려되었습니다",
	workflow.TriggerStartReview: "검토가 시작되었습니다",
}

const dateLayout = "2006-01-02"

// Login handles POST /api/admin/login
func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeMissingCredentials, "아이디와 비밀번호를 입력해주세요", nil)
		return
	}

	token, err := s.deps.Auth.Login(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		s.logger.Info("Admin login failed", "username", req.Username, "client_ip", c.ClientIP())
		s.respondError(c, err)
		return
	}

	s.logger.Info("Admin logged in", "username", req.Username, "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, LoginResponse{
		Token:     token.AccessToken,
		ExpiresAt: token.ExpiresAt,
		User:      AdminUser{Username: strings.TrimSpace(req.Username), Role: "admin"},
		Message:   "로그인 성공",
	})
}

// ListRequests handles GET /api/admin/requests
func (s *Server) ListRequests(c *gin.Context) {
	filter, ok := s.bindFilter(c)
	if !ok {
		return
	}

	apps, err := s.deps.Applications.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apps)
}

// GetRequest handles GET /api/admin/requests/:id
func (s *Server) GetRequest(c *gin.Context) {
	app, err := s.deps.Applications.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		Application: app,
		Timeline:    service.Timeline(app),
		Actions:     permittedActions(app.Status),
	})
}

func permittedActions(status entity.Status) []string {
	triggers := workflow.Permitted(workflow.StateFromStatus(status))
	actions := make([]string, len(triggers))
	for i, t := range triggers {
		actions[i] = t.Action()
	}
	return actions
}

// ProcessRequest handles POST /api/admin/requests/approve
func (s *Server) ProcessRequest(c *gin.Context) {
	var req ProcessBody
	if err := c.ShouldBindJSON(&req); err != nil || req.ID == "" || req.Action == "" {
		abortWithError(c, http.StatusBadRequest, CodeMissingParameters, "필수 매개변수가 누락되었습니다", nil)
		return
	}

	trigger, ok := workflow.ParseAction(req.Action)
	if !ok {
		abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "지원하지 않는 처리 방식입니다", nil)
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if trigger == workflow.TriggerReject && reason == "" {
		abortWithError(c, http.StatusBadRequest, CodeMissingReason, "반려 사유를 입력해주세요", nil)
		return
	}

	app, err := s.deps.Applications.Transition(c.Request.Context(), req.ID, trigger, reason)
	if err != nil {
		if errors.Is(err, entity.ErrMissingParameter) {
			abortWithError(c, http.StatusBadRequest, CodeMissingReason, "반려 사유를 입력해주세요", nil)
			return
		}
		s.respondError(c, err)
		return
	}

	s.logger.Info("Application processed",
		"id", app.ID,
		"receipt", app.Receipt,
		"action", trigger.String(),
		"admin", c.GetString(adminContextKey))

	c.JSON(http.StatusOK, ProcessResponse{
		Message:     actionMessages[trigger],
		Application: app,
	})
}

// Stats handles GET /api/admin/stats
func (s *Server) Stats(c *gin.Context) {
	stats, err := s.deps.Applications.Stats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CalendarView handles GET /api/admin/calendar?year=&month=&status=
func (s *Server) CalendarView(c *gin.Context) {
	now := s.deps.Now().In(s.deps.Location)
	year, month := now.Year(), int(now.Month())

	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "연도가 올바르지 않습니다", nil)
			return
		}
		year = n
	}
	if v := c.Query("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "월이 올바르지 않습니다", nil)
			return
		}
		month = n
	}

	status := entity.Status(strings.ToUpper(c.Query("status")))
	if status != "" && !status.IsValid() {
		abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "상태 값이 올바르지 않습니다", nil)
		return
	}

	cal, err := s.deps.Applications.Calendar(c.Request.Context(), year, month, status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cal)
}

// Export handles GET /api/admin/requests/export with the list filters
func (s *Server) Export(c *gin.Context) {
	filter, ok := s.bindFilter(c)
	if !ok {
		return
	}

	apps, err := s.deps.Applications.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Exporter.Write(&buf, apps); err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, s.deps.Exporter.Filename(s.deps.Now())))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// bindFilter reads type, status, area, q, from and to (YYYY-MM-DD, inclusive).
// It writes the error response itself and returns false on bad input.
func (s *Server) bindFilter(c *gin.Context) (service.ListFilter, bool) {
	var filter service.ListFilter

	if v := c.Query("type"); v != "" {
		filter.Type = entity.Type(strings.ToUpper(v))
		if !filter.Type.IsValid() {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "신청 유형이 올바르지 않습니다", nil)
			return filter, false
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = entity.Status(strings.ToUpper(v))
		if !filter.Status.IsValid() {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "상태 값이 올바르지 않습니다", nil)
			return filter, false
		}
	}
	if v := c.Query("area"); v != "" {
		filter.AccessArea = entity.AccessArea(strings.ToUpper(v))
		if !filter.AccessArea.IsValid() {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "출입지역이 올바르지 않습니다", nil)
			return filter, false
		}
	}
	filter.Query = strings.TrimSpace(c.Query("q"))

	if v := c.Query("from"); v != "" {
		from, err := time.ParseInLocation(dateLayout, v, s.deps.Location)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "시작일이 올바르지 않습니다", nil)
			return filter, false
		}
		filter.From = from
	}
	if v := c.Query("to"); v != "" {
		to, err := time.ParseInLocation(dateLayout, v, s.deps.Location)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "종료일이 올바르지 않습니다", nil)
			return filter, false
		}
		filter.To = to.AddDate(0, 0, 1)
	}

	return filter, true
}
