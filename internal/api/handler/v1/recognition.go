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

type RecognitionService interface {
	EvaluateBridge(ctx context.Context, eventID, userID string, actor domain.Actor) (domain.RecognitionSignal, error)
	Recognize(ctx context.Context, in service.RecognizeInput) (domain.GMCRecord, error)
	ListGMC(ctx context.Context, userID string) ([]domain.GMCRecord, error)
}

type RecognitionHandler struct {
	svc RecognitionService
}

func NewRecognitionHandler(svc RecognitionService) *RecognitionHandler {
	return &RecognitionHandler{svc: svc}
}

// HandleEvaluateBridge godoc
// @Summary      Evaluate a participant for GMC review
// @Description  Raises a review signal only. No GMC is created. The first settled signal of a participant is returned on every later call.
// @Tags         recognition
// @Produce      json
// @Param        id      path      string  true  "auction"
// @Param        userID  path      string  true  "participant"
// @Success      200     {object}  domain.RecognitionSignal
// @Failure      404     {object}  response.Err
// @Failure      500     {object}  response.Err
// @Router       /auctions/{id}/recognition/{userID} [post]
// @Security     BearerAuth
func (h *RecognitionHandler) HandleEvaluateBridge(ctx *gin.Context) {
	sig, err := h.svc.EvaluateBridge(ctx.Request.Context(), ctx.Param("id"), ctx.Param("userID"), middleware.ActorFrom(ctx))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, sig)
}

// HandleRecognize godoc
// @Summary      Recognize a user with GMC
// @Tags         recognition
// @Accept       json
// @Produce      json
// @Param        request  body      request.RecognizeRequest  true  "recognition"
// @Success      201      {object}  domain.GMCRecord
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /gmc [post]
// @Security     BearerAuth
func (h *RecognitionHandler) HandleRecognize(ctx *gin.Context) {
	var req request.RecognizeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	rec, err := h.svc.Recognize(ctx.Request.Context(), service.RecognizeInput{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Category:      domain.GMCCategory(req.Category),
		Justification: req.Justification,
		RecognizedBy:  middleware.ActorFrom(ctx),
	})
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusCreated, rec)
}

// HandleListGMC godoc
// @Summary      List the GMC of a user
// @Tags         recognition
// @Produce      json
// @Param        userID  path      string  true  "user"
// @Success      200     {array}   domain.GMCRecord
// @Failure      500     {object}  response.Err
// @Router       /gmc/{userID} [get]
// @Security     BearerAuth
func (h *RecognitionHandler) HandleListGMC(ctx *gin.Context) {
	recs, err := h.svc.ListGMC(ctx.Request.Context(), ctx.Param("userID"))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, recs)
}
