package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/mc-economy/internal/api/handler/v1/request"
	"github.com/vietanh2810/mc-economy/internal/api/handler/v1/response"
	"github.com/vietanh2810/mc-economy/internal/api/middleware"
	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/service"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type StoreService interface {
	AccessDecision(ctx context.Context, userID string) (domain.EligibilityDecision, error)
	Purchase(ctx context.Context, in service.PurchaseInput) (domain.PurchaseResult, error)
	Wallet(ctx context.Context, userID string) (domain.Wallet, error)
	CreditWallet(ctx context.Context, userID string, amount int64, actor domain.Actor) (domain.Wallet, error)
	UpsertItem(ctx context.Context, item domain.StoreItem, actor domain.Actor) (domain.StoreItem, error)
	Restrict(ctx context.Context, userID, reason string, actor domain.Actor) error
	Unrestrict(ctx context.Context, userID string, actor domain.Actor) (bool, error)
}

type StoreHandler struct {
	svc StoreService
}

func NewStoreHandler(svc StoreService) *StoreHandler {
	return &StoreHandler{svc: svc}
}

// HandleAccess godoc
// @Summary      Store access decision for the caller
// @Tags         store
// @Produce      json
// @Success      200  {object}  domain.EligibilityDecision
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /store/access [get]
// @Security     BearerAuth
func (h *StoreHandler) HandleAccess(ctx *gin.Context) {
	decision, err := h.svc.AccessDecision(ctx.Request.Context(), middleware.ActorFrom(ctx).ID)
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, decision)
}

// HandlePurchase godoc
// @Summary      Exchange MC for a store item
// @Description  Retries with the same Idempotency-Key return the completed purchase without a second debit.
// @Tags         store
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string                   true  "idempotency key"
// @Param        request          body      request.PurchaseRequest  true  "purchase"
// @Success      200              {object}  domain.PurchaseResult
// @Success      201              {object}  domain.PurchaseResult
// @Failure      400              {object}  response.Err
// @Failure      403              {object}  response.Err
// @Failure      409              {object}  response.Err
// @Failure      422              {object}  response.Err
// @Failure      503              {object}  response.Err
// @Router       /store/purchases [post]
// @Security     BearerAuth
func (h *StoreHandler) HandlePurchase(ctx *gin.Context) {
	key := ctx.GetHeader(HeaderIdempotencyKey)
	if key == "" {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("Idempotency-Key header is required")))
		return
	}

	var req request.PurchaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	actor := middleware.ActorFrom(ctx)
	res, err := h.svc.Purchase(ctx.Request.Context(), service.PurchaseInput{
		UserID:         actor.ID,
		ItemID:         req.ItemID,
		IdempotencyKey: key,
		Actor:          actor,
	})
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	ctx.JSON(status, res)
}

// HandleWallet godoc
// @Summary      Wallet balance of a user
// @Tags         store
// @Produce      json
// @Param        userID  path      string  true  "user"
// @Success      200     {object}  domain.Wallet
// @Failure      500     {object}  response.Err
// @Router       /store/wallets/{userID} [get]
// @Security     BearerAuth
func (h *StoreHandler) HandleWallet(ctx *gin.Context) {
	wallet, err := h.svc.Wallet(ctx.Request.Context(), ctx.Param("userID"))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, wallet)
}

// HandleCreditWallet godoc
// @Summary      Credit a wallet
// @Tags         store
// @Accept       json
// @Produce      json
// @Param        userID   path      string                       true  "user"
// @Param        request  body      request.CreditWalletRequest  true  "credit"
// @Success      200      {object}  domain.Wallet
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /store/wallets/{userID}/credit [post]
// @Security     BearerAuth
func (h *StoreHandler) HandleCreditWallet(ctx *gin.Context) {
	var req request.CreditWalletRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	wallet, err := h.svc.CreditWallet(ctx.Request.Context(), ctx.Param("userID"), req.Amount, middleware.ActorFrom(ctx))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, wallet)
}

// HandleUpsertItem godoc
// @Summary      Create or replace a store item
// @Tags         store
// @Accept       json
// @Produce      json
// @Param        itemID   path      string                     true  "item"
// @Param        request  body      request.UpsertItemRequest  true  "item"
// @Success      200      {object}  domain.StoreItem
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Failure      422      {object}  response.Err
// @Router       /store/items/{itemID} [put]
// @Security     BearerAuth
func (h *StoreHandler) HandleUpsertItem(ctx *gin.Context) {
	var req request.UpsertItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	item, err := h.svc.UpsertItem(ctx.Request.Context(), domain.StoreItem{
		ID:           ctx.Param("itemID"),
		Name:         req.Name,
		PriceMC:      req.PriceMC,
		IsActive:     req.IsActive,
		TracksStock:  req.TracksStock,
		Stock:        req.Stock,
		PerUserLimit: req.PerUserLimit,
	}, middleware.ActorFrom(ctx))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.JSON(http.StatusOK, item)
}

// HandleRestrict godoc
// @Summary      Restrict a user from the store
// @Tags         store
// @Accept       json
// @Param        userID   path  string                    true  "user"
// @Param        request  body  request.RestrictRequest   true  "restriction"
// @Success      204
// @Failure      400  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Router       /store/restrictions/{userID} [put]
// @Security     BearerAuth
func (h *StoreHandler) HandleRestrict(ctx *gin.Context) {
	var req request.RestrictRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := h.svc.Restrict(ctx.Request.Context(), ctx.Param("userID"), req.Reason, middleware.ActorFrom(ctx)); err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleUnrestrict godoc
// @Summary      Lift a store restriction
// @Tags         store
// @Param        userID  path  string  true  "user"
// @Success      204
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Router       /store/restrictions/{userID} [delete]
// @Security     BearerAuth
func (h *StoreHandler) HandleUnrestrict(ctx *gin.Context) {
	userID := ctx.Param("userID")
	removed, err := h.svc.Unrestrict(ctx.Request.Context(), userID, middleware.ActorFrom(ctx))
	if err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}
	if !removed {
		response.RenderErr(ctx, response.ErrNotFound("restriction", "user_id", userID))
		return
	}

	ctx.Status(http.StatusNoContent)
}
