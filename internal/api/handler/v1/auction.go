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

type AuctionService interface {
	Schedule(ctx context.Context, in service.ScheduleInput) (domain.AuctionEvent, error)
	Open(ctx context.Context, id string, actor domain.Actor) (domain.AuctionEvent, error)
	Close(ctx context.Context, id string, actor domain.Actor) (domain.AuctionEvent, error)
	Cancel(ctx context.Context, id string, actor domain.Actor, reason string) (domain.AuctionEvent, error)
	Participate(ctx context.Context, in service.ParticipateInput) (domain.ParticipationRecord, error)
}

type AuctionHandler struct {
	svc AuctionService
}

func NewAuctionHandler(svc AuctionService) *AuctionHandler {
	return &AuctionHandler{svc: svc}
}

// HandleSchedule godoc
// @Summary      Schedule an auction
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        request  body      request.ScheduleAuctionRequest  true  "auction"
// @Success      201      {object}  domain.AuctionEvent
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /auctions [post]
// @Security     BearerAuth
func (h *AuctionHandler) HandleSchedule(ctx *gin.Context) {
	var req request.ScheduleAuctionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	ev, err := h.svc.Schedule(ctx.Request.Context(), service.ScheduleInput{
		Name:           req.Name,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		EntryCostMC:    req.EntryCostMC,
		WinProbability: req.WinProbability,
		Actor:          middleware.ActorFrom(ctx),
	})
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusCreated, ev)
}

// HandleOpen godoc
// @Summary      Open a scheduled auction
// @Tags         auctions
// @Produce      json
// @Param        id   path      string  true  "auction"
// @Success      200  {object}  domain.AuctionEvent
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /auctions/{id}/open [post]
// @Security     BearerAuth
func (h *AuctionHandler) HandleOpen(ctx *gin.Context) {
	ev, err := h.svc.Open(ctx.Request.Context(), ctx.Param("id"), middleware.ActorFrom(ctx))
	renderAuction(ctx, ev, err)
}

// HandleClose godoc
// @Summary      Close an active auction after its window
// @Tags         auctions
// @Produce      json
// @Param        id   path      string  true  "auction"
// @Success      200  {object}  domain.AuctionEvent
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Router       /auctions/{id}/close [post]
// @Security     BearerAuth
func (h *AuctionHandler) HandleClose(ctx *gin.Context) {
	ev, err := h.svc.Close(ctx.Request.Context(), ctx.Param("id"), middleware.ActorFrom(ctx))
	renderAuction(ctx, ev, err)
}

// HandleCancel godoc
// @Summary      Cancel an auction
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "auction"
// @Param        request  body      request.CancelAuctionRequest  true  "reason"
// @Success      200      {object}  domain.AuctionEvent
// @Failure      400      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Router       /auctions/{id}/cancel [post]
// @Security     BearerAuth
func (h *AuctionHandler) HandleCancel(ctx *gin.Context) {
	var req request.CancelAuctionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	ev, err := h.svc.Cancel(ctx.Request.Context(), ctx.Param("id"), middleware.ActorFrom(ctx), req.Reason)
	renderAuction(ctx, ev, err)
}

// HandleParticipate godoc
// @Summary      Enter the caller into an active auction
// @Description  Every referenced usable token is spent, whether the entry wins or loses.
// @Tags         auctions
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "auction"
// @Param        request  body      request.ParticipateRequest  true  "tokens"
// @Success      201      {object}  domain.ParticipationRecord
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /auctions/{id}/participations [post]
// @Security     BearerAuth
func (h *AuctionHandler) HandleParticipate(ctx *gin.Context) {
	var req request.ParticipateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	actor := middleware.ActorFrom(ctx)
	rec, err := h.svc.Participate(ctx.Request.Context(), service.ParticipateInput{
		EventID:  ctx.Param("id"),
		UserID:   actor.ID,
		TokenIDs: req.TokenIDs,
		Actor:    actor,
	})
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusCreated, rec)
}

func renderAuction(ctx *gin.Context, ev domain.AuctionEvent, err error) {
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}
	ctx.JSON(http.StatusOK, ev)
}
