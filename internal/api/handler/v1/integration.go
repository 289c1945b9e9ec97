package v1

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/mc-economy/internal/api/handler/v1/response"
	"github.com/vietanh2810/mc-economy/internal/api/middleware"
	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/service"
)

type IntegrationService interface {
	ListAudit(ctx context.Context, cred service.Credentials, f domain.AuditFilter) ([]domain.AuditEvent, error)
	ListGMC(ctx context.Context, cred service.Credentials, userID string) ([]domain.GMCRecord, error)
	MCSummary(ctx context.Context, cred service.Credentials, userID string) (domain.MCSummary, error)
	OpenStream(ctx context.Context, cred service.Credentials) error
	Tail(ctx context.Context, afterSeq int64, limit int) ([]domain.AuditEvent, error)
}

type IntegrationHandler struct {
	svc IntegrationService
}

func NewIntegrationHandler(svc IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{svc: svc}
}

// HandleListAudit godoc
// @Summary      Read the audit ledger
// @Tags         integration
// @Produce      json
// @Param        X-Consumer-Name  header    string  true   "consumer"
// @Param        X-Consumer-Key   header    string  true   "consumer key"
// @Param        event_type       query     string  false  "event type"
// @Param        subject_id       query     string  false  "subject"
// @Param        actor_id         query     string  false  "actor"
// @Param        since            query     string  false  "RFC3339 lower bound"
// @Param        until            query     string  false  "RFC3339 upper bound"
// @Param        after_seq        query     int     false  "cursor"
// @Param        limit            query     int     false  "page size"
// @Success      200              {array}   domain.AuditEvent
// @Failure      400              {object}  response.Err
// @Failure      401              {object}  response.Err
// @Failure      403              {object}  response.Err
// @Router       /integration/audit [get]
func (h *IntegrationHandler) HandleListAudit(ctx *gin.Context) {
	f, err := auditFilter(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	events, err := h.svc.ListAudit(ctx.Request.Context(), middleware.CredentialsFrom(ctx), f)
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, events)
}

// HandleListGMC godoc
// @Summary      Read the GMC of a user
// @Tags         integration
// @Produce      json
// @Param        X-Consumer-Name  header    string  true  "consumer"
// @Param        X-Consumer-Key   header    string  true  "consumer key"
// @Param        userID           path      string  true  "user"
// @Success      200              {array}   domain.GMCRecord
// @Failure      401              {object}  response.Err
// @Failure      403              {object}  response.Err
// @Router       /integration/gmc/{userID} [get]
func (h *IntegrationHandler) HandleListGMC(ctx *gin.Context) {
	recs, err := h.svc.ListGMC(ctx.Request.Context(), middleware.CredentialsFrom(ctx), ctx.Param("userID"))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, recs)
}

// HandleMCSummary godoc
// @Summary      Read the MC summary of a user
// @Tags         integration
// @Produce      json
// @Param        X-Consumer-Name  header    string  true  "consumer"
// @Param        X-Consumer-Key   header    string  true  "consumer key"
// @Param        userID           path      string  true  "user"
// @Success      200              {object}  domain.MCSummary
// @Failure      401              {object}  response.Err
// @Failure      403              {object}  response.Err
// @Router       /integration/mc/{userID}/summary [get]
func (h *IntegrationHandler) HandleMCSummary(ctx *gin.Context) {
	sum, err := h.svc.MCSummary(ctx.Request.Context(), middleware.CredentialsFrom(ctx), ctx.Param("userID"))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, sum)
}

func auditFilter(ctx *gin.Context) (domain.AuditFilter, error) {
	f := domain.AuditFilter{
		EventType: domain.AuditEventType(ctx.Query("event_type")),
		SubjectID: ctx.Query("subject_id"),
		ActorID:   ctx.Query("actor_id"),
	}

	for name, dst := range map[string]**time.Time{"since": &f.Since, "until": &f.Until} {
		raw := ctx.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return domain.AuditFilter{}, fmt.Errorf("%s must be RFC3339: %w", name, err)
		}
		*dst = &t
	}

	var err error
	if raw := ctx.Query("after_seq"); raw != "" {
		if f.AfterSeq, err = strconv.ParseInt(raw, 10, 64); err != nil || f.AfterSeq < 0 {
			return domain.AuditFilter{}, fmt.Errorf("after_seq must be a non-negative integer")
		}
	}
	if raw := ctx.Query("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil || f.Limit < 0 {
			return domain.AuditFilter{}, fmt.Errorf("limit must be a non-negative integer")
		}
	}

	return f, nil
}
