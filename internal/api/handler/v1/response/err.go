package response

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/domain"
)

// Err is the body of every error response. Code carries the stable reason
// code when the error is a business violation.
type Err struct {
	HTTPStatusCode int    `json:"-"`
	StatusText     string `json:"status"`
	Code           string `json:"code,omitempty"`
	ErrorMsg       string `json:"error,omitempty"`

	cause error
}

func RenderErr(ctx *gin.Context, e *Err) {
	if e.HTTPStatusCode >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.Int("status", e.HTTPStatusCode),
			zap.Error(e.cause))
	}
	ctx.AbortWithStatusJSON(e.HTTPStatusCode, e)
}

func ErrBadRequest(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     http.StatusText(http.StatusBadRequest),
		ErrorMsg:       err.Error(),
		cause:          err,
	}
}

func ErrUnauthorized(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusUnauthorized,
		StatusText:     http.StatusText(http.StatusUnauthorized),
		ErrorMsg:       err.Error(),
		cause:          err,
	}
}

func ErrPermissionDenied(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusForbidden,
		StatusText:     http.StatusText(http.StatusForbidden),
		ErrorMsg:       err.Error(),
		cause:          err,
	}
}

func ErrNotFound(resource, key string, value any) *Err {
	return &Err{
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     http.StatusText(http.StatusNotFound),
		ErrorMsg:       fmt.Sprintf("%s with %s %v not found", resource, key, value),
	}
}

// ErrInternalServerError hides the cause from the client and logs it instead.
func ErrInternalServerError(err error) *Err {
	return &Err{
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     http.StatusText(http.StatusInternalServerError),
		ErrorMsg:       "internal server error",
		cause:          err,
	}
}

// ErrFrom maps a service error to a response. Violations become 4xx with
// their reason code; anything else is an internal error.
func ErrFrom(err error) *Err {
	code := domain.ReasonOf(err)
	if code == "" {
		return ErrInternalServerError(err)
	}

	status := statusOf(code)
	return &Err{
		HTTPStatusCode: status,
		StatusText:     http.StatusText(status),
		Code:           string(code),
		ErrorMsg:       err.Error(),
		cause:          err,
	}
}

func statusOf(code domain.ReasonCode) int {
	switch code {
	case domain.ReasonInvalidRequest, domain.ReasonMissingOperation, domain.ReasonUnknownDomain:
		return http.StatusBadRequest
	case domain.ReasonMissingActor, domain.ReasonUnknownConsumer:
		return http.StatusUnauthorized
	case domain.ReasonForbiddenActor, domain.ReasonUserRestricted, domain.ReasonAccessDenied,
		domain.ReasonScopeDenied, domain.ReasonSelfRecognition:
		return http.StatusForbidden
	case domain.ReasonMCNotFound, domain.ReasonItemNotFound, domain.ReasonAuctionNotFound:
		return http.StatusNotFound
	case domain.ReasonConcurrentRequest, domain.ReasonIdempotencyRejected, domain.ReasonStaleTransition,
		domain.ReasonAlreadyParticipated, domain.ReasonTerminalState, domain.ReasonInvalidState,
		domain.ReasonImmutableRecord:
		return http.StatusConflict
	case domain.ReasonStoreMaintenance:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}
