package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/access-portal/internal/application/service"
	"github.com/garyjia/access-portal/internal/application/validation"
	"github.com/garyjia/access-portal/internal/auth"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/domain/workflow"
	"github.com/garyjia/access-portal/internal/infrastructure/storage"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeMissingParameters  = "MISSING_PARAMETERS"
	CodeMissingReason      = "MISSING_REASON"
	CodeMissingReceipt     = "MISSING_RECEIPT"
	CodeInvalidReceipt     = "INVALID_RECEIPT"
	CodeInvalidParameters  = "INVALID_PARAMETERS"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeFileTooLarge       = "FILE_TOO_LARGE"
	CodeInvalidFileType    = "INVALID_FILE_TYPE"
	CodeNoFile             = "NO_FILE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: code, Message: message, Details: details})
}

// respondError maps a service or infrastructure error onto the API error envelope
func (s *Server) respondError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors

	switch {
	case errors.As(err, &verrs):
		abortWithError(c, http.StatusBadRequest, CodeValidation, "입력 데이터가 올바르지 않습니다", verrs)
	case errors.Is(err, entity.ErrInvalidSubmission):
		abortWithError(c, http.StatusBadRequest, CodeValidation, "입력 데이터가 올바르지 않습니다", nil)
	case errors.Is(err, entity.ErrMissingParameter):
		abortWithError(c, http.StatusBadRequest, CodeMissingParameters, "필수 매개변수가 누락되었습니다", nil)
	case errors.Is(err, service.ErrInvalidPeriod):
		abortWithError(c, http.StatusBadRequest, CodeInvalidParameters, "조회 기간이 올바르지 않습니다", nil)
	case errors.Is(err, entity.ErrNotFound):
		abortWithError(c, http.StatusNotFound, CodeNotFound, "해당 신청을 찾을 수 없습니다", nil)
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, entity.ErrStatusConflict):
		abortWithError(c, http.StatusConflict, CodeInvalidTransition, "현재 상태에서 처리할 수 없는 요청입니다", nil)
	case errors.Is(err, storage.ErrFileTooLarge):
		abortWithError(c, http.StatusBadRequest, CodeFileTooLarge, fmt.Sprintf("파일 크기는 %dMB를 초과할 수 없습니다", s.config.MaxUploadSize>>20), nil)
	case errors.Is(err, storage.ErrInvalidFileType):
		abortWithError(c, http.StatusBadRequest, CodeInvalidFileType, "지원하지 않는 파일 형식입니다", nil)
	case errors.Is(err, storage.ErrEmptyFile):
		abortWithError(c, http.StatusBadRequest, CodeNoFile, "파일이 제공되지 않았습니다", nil)
	case errors.Is(err, storage.ErrFileNotFound), errors.Is(err, storage.ErrInvalidKey):
		abortWithError(c, http.StatusNotFound, CodeNotFound, "파일을 찾을 수 없습니다", nil)
	case errors.Is(err, auth.ErrMissingCredentials):
		abortWithError(c, http.StatusBadRequest, CodeMissingCredentials, "아이디와 비밀번호를 입력해주세요", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		abortWithError(c, http.StatusUnauthorized, CodeInvalidCredentials, "아이디 또는 비밀번호가 올바르지 않습니다", nil)
	case errors.Is(err, auth.ErrInvalidToken):
		abortWithError(c, http.StatusUnauthorized, CodeUnauthorized, "인증이 필요합니다", nil)
	default:
		s.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "서버 오류가 발생했습니다", nil)
	}
}
