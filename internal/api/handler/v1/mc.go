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

type MCService interface {
	Grant(ctx context.Context, in service.GrantInput) (domain.MCRecord, error)
	Freeze(ctx context.Context, id string, actor domain.Actor) (domain.MCRecord, error)
	Unfreeze(ctx context.Context, id string, actor domain.Actor) (domain.MCRecord, error)
	Spend(ctx context.Context, id string, actor domain.Actor, reference string) (domain.MCRecord, error)
	Expire(ctx context.Context, id string, actor domain.Actor) (domain.MCRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.MCRecord, error)
	Summary(ctx context.Context, ownerID string) (domain.MCSummary, error)
}

type MCHandler struct {
	svc MCService
}

func NewMCHandler(svc MCService) *MCHandler {
	return &MCHandler{svc: svc}
}

// HandleGrant godoc
// @Summary      Grant MC to a user
// @Tags         mc
// @Accept       json
// @Produce      json
// @Param        request  body      request.GrantRequest  true  "grant"
// @Success      201      {object}  domain.MCRecord
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /mc/grants [post]
// @Security     BearerAuth
func (h *MCHandler) HandleGrant(ctx *gin.Context) {
	var req request.GrantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	rec, err := h.svc.Grant(ctx.Request.Context(), service.GrantInput{
		OwnerID:    req.OwnerID,
		Amount:     req.Amount,
		ExpiresAt:  req.ExpiresAt,
		SourceType: domain.MCSourceType(req.SourceType),
		SourceID:   req.SourceID,
		Actor:      middleware.ActorFrom(ctx),
	})
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusCreated, rec)
}

// HandleFreeze godoc
// @Summary      Freeze an active MC
// @Tags         mc
// @Produce      json
// @Param        id   path      string  true  "MC ID"
// @Success      200  {object}  domain.MCRecord
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /mc/{id}/freeze [post]
// @Security     BearerAuth
func (h *MCHandler) HandleFreeze(ctx *gin.Context) {
	rec, err := h.svc.Freeze(ctx.Request.Context(), ctx.Param("id"), middleware.ActorFrom(ctx))
	h.render(ctx, rec, err)
}

// HandleUnfreeze godoc
// @Summary      Unfreeze a frozen MC
// @Tags         mc
// @Produce      json
// @Param        id   path      string  true  "MC ID"
// @Success      200  {object}  domain.MCRecord
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /mc/{id}/unfreeze [post]
// @Security     BearerAuth
func (h *MCHandler) HandleUnfreeze(ctx *gin.Context) {
	rec, err := h.svc.Unfreeze(ctx.Request.Context(), ctx.Param("id"), middleware.ActorFrom(ctx))
	h.render(ctx, rec, err)
}

// HandleSpend godoc
// @Summary      Spend an MC
// @Tags         mc
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "MC ID"
// @Param        request  body      request.SpendRequest  true  "spend"
// @Success      200      {object}  domain.MCRecord
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /mc/{id}/spend [post]
// @Security     BearerAuth
func (h *MCHandler) HandleSpend(ctx *gin.Context) {
	var req request.SpendRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	rec, err := h.svc.Spend(ctx.Request.Context(), ctx.Param("id"), middleware.ActorFrom(ctx), req.Reference)
	h.render(ctx, rec, err)
}

// HandleExpire godoc
// @Summary      Record the expiry of an MC
// @Tags         mc
// @Produce      json
// @Param        id   path      string  true  "MC ID"
// @Success      200  {object}  domain.MCRecord
// @Failure      404  {object}  response.Err
// @Failure      422  {object}  response.Err
// @Router       /mc/{id}/expire [post]
// @Security     BearerAuth
func (h *MCHandler) HandleExpire(ctx *gin.Context) {
	rec, err := h.svc.Expire(ctx.Request.Context(), ctx.Param("id"), middleware.ActorFrom(ctx))
	h.render(ctx, rec, err)
}

// HandleList godoc
// @Summary      List the MC of an owner
// @Tags         mc
// @Produce      json
// @Param        owner_id  query     string  false  "owner, defaults to the caller"
// @Success      200       {array}   domain.MCRecord
// @Failure      500       {object}  response.Err
// @Router       /mc [get]
// @Security     BearerAuth
func (h *MCHandler) HandleList(ctx *gin.Context) {
	owner := ctx.Query("owner_id")
	if owner == "" {
		owner = middleware.ActorFrom(ctx).ID
	}

	recs, err := h.svc.ListByOwner(ctx.Request.Context(), owner)
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, recs)
}

// HandleSummary godoc
// @Summary      Usable, frozen and expired MC totals of an owner
// @Tags         mc
// @Produce      json
// @Param        owner_id  query     string  false  "owner, defaults to the caller"
// @Success      200       {object}  domain.MCSummary
// @Failure      500       {object}  response.Err
// @Router       /mc/summary [get]
// @Security     BearerAuth
func (h *MCHandler) HandleSummary(ctx *gin.Context) {
	owner := ctx.Query("owner_id")
	if owner == "" {
		owner = middleware.ActorFrom(ctx).ID
	}

	sum, err := h.svc.Summary(ctx.Request.Context(), owner)
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, sum)
}

func (h *MCHandler) render(ctx *gin.Context, rec domain.MCRecord, err error) {
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}
	ctx.JSON(http.StatusOK, rec)
}
