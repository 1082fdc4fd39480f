package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/access-portal/internal/application/service"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/receipt"
	"github.com/garyjia/access-portal/internal/infrastructure/storage"
)

var applyKinds = map[string]entity.Type{
	"group-visit": entity.TypeGroupVisit,
	"port-access": entity.TypePortAccess,
	"goods-inout": entity.TypeGoodsInOut,
	"visit-r3":    entity.TypeVisitR3,
}

// ApplyResponse acknowledges an accepted application
type ApplyResponse struct {
	Receipt string `json:"receipt"`
	Message string `json:"message"`
}

// StatusResponse is the status page payload: the application plus its timeline
type StatusResponse struct {
	*entity.Application
	Timeline []service.TimelineStep `json:"timeline"`
	Cached   bool                   `json:"cached,omitempty"`
	// Actions lists the console actions still open; admin views only
	Actions []string `json:"actions,omitempty"`
}

// UploadResponse carries the metadata a client attaches to a submission's files
type UploadResponse struct {
	Success bool              `json:"success"`
	File    entity.FileUpload `json:"file"`
	Size    int64             `json:"size"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: s.deps.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(c.Request.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Apply handles POST /api/apply/:kind
func (s *Server) Apply(c *gin.Context) {
	appType, ok := applyKinds[c.Param("kind")]
	if !ok {
		abortWithError(c, http.StatusNotFound, CodeNotFound, "지원하지 않는 신청 유형입니다", nil)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, CodeValidation, "요청 본문이 너무 큽니다", nil)
			return
		}
		abortWithError(c, http.StatusBadRequest, CodeValidation, "입력 데이터가 올바르지 않습니다", nil)
		return
	}

	app, err := s.deps.Applications.Submit(c.Request.Context(), appType, raw)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ApplyResponse{
		Receipt: app.Receipt,
		Message: "신청이 성공적으로 접수되었습니다",
	})
}

// Status handles GET /api/status?receipt=
func (s *Server) Status(c *gin.Context) {
	rcpt := strings.ToUpper(strings.TrimSpace(c.Query("receipt")))
	if rcpt == "" {
		abortWithError(c, http.StatusBadRequest, CodeMissingReceipt, "접수번호가 필요합니다", nil)
		return
	}
	if _, err := receipt.Parse(rcpt); err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidReceipt, "접수번호 형식이 올바르지 않습니다", nil)
		return
	}

	lookup, err := s.deps.Applications.GetByReceipt(c.Request.Context(), rcpt)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, CodeNotFound, "해당 접수번호를 찾을 수 없습니다", nil)
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Application: lookup.Application,
		Timeline:    service.Timeline(lookup.Application),
		Cached:      lookup.Cached,
	})
}

// Upload handles POST /api/upload (multipart field "file")
func (s *Server) Upload(c *gin.Context) {
	// multipart framing adds a little on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadSize+(1<<20))

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(c, storage.ErrFileTooLarge)
			return
		}
		abortWithError(c, http.StatusBadRequest, CodeNoFile, "파일이 제공되지 않았습니다", nil)
		return
	}
	defer file.Close()

	if header.Size > s.config.MaxUploadSize {
		s.respondError(c, storage.ErrFileTooLarge)
		return
	}

	stored, err := s.deps.Files.Save(c.Request.Context(), header.Filename, file)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{
		Success: true,
		File: entity.FileUpload{
			ID:         uuid.NewString(),
			Filename:   header.Filename,
			FileKey:    stored.Key,
			FileType:   stored.MimeType,
			UploadedAt: s.deps.Now().UTC(),
		},
		Size: stored.Size,
	})
}

// File handles GET /api/files/:key
func (s *Server) File(c *gin.Context) {
	rc, info, err := s.deps.Files.Open(c.Request.Context(), c.Param("key"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, info.Size, info.MimeType, rc, map[string]string{
		"Content-Disposition":    `inline; filename="` + info.Key + `"`,
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, max-age=3600",
	})
}
