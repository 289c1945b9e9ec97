package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/mc-economy/internal/api/handler/v1/request"
	"github.com/vietanh2810/mc-economy/internal/api/handler/v1/response"
	"github.com/vietanh2810/mc-economy/internal/api/middleware"
	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/service"
)

type GovernanceService interface {
	Evaluate(ctx context.Context, in service.UsageInput) (domain.GovernanceDecision, error)
}

type GovernanceHandler struct {
	svc GovernanceService
}

func NewGovernanceHandler(svc GovernanceService) *GovernanceHandler {
	return &GovernanceHandler{svc: svc}
}

// HandleEvaluate godoc
// @Summary      Evaluate an economy usage attempt
// @Description  Missing fields are not rejected here. They produce a Disallow verdict.
// @Tags         governance
// @Accept       json
// @Produce      json
// @Param        request  body      request.EvaluateUsageRequest  true  "usage"
// @Success      200      {object}  domain.GovernanceDecision
// @Failure      400      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /governance/evaluations [post]
// @Security     BearerAuth
func (h *GovernanceHandler) HandleEvaluate(ctx *gin.Context) {
	var req request.EvaluateUsageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	decision, err := h.svc.Evaluate(ctx.Request.Context(), service.UsageInput{
		UserID:    req.UserID,
		Domain:    domain.UsageDomain(req.Domain),
		Operation: req.Operation,
		Metadata:  req.Metadata,
		Actor:     middleware.ActorFrom(ctx),
	})
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, decision)
}
