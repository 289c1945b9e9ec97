package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type PurchaseRequest struct {
	ItemID string `json:"item_id"`
}

func (req *PurchaseRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.ItemID, validation.Required, validation.Length(1, 128)),
	)
}

type CreditWalletRequest struct {
	Amount int64 `json:"amount"`
}

type UpsertItemRequest struct {
	Name         string `json:"name"`
	PriceMC      int64  `json:"price_mc"`
	IsActive     bool   `json:"is_active"`
	TracksStock  bool   `json:"tracks_stock"`
	Stock        int64  `json:"stock"`
	PerUserLimit int64  `json:"per_user_limit"`
}

func (req *UpsertItemRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 100)),
	)
}

type RestrictRequest struct {
	Reason string `json:"reason"`
}

func (req *RestrictRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reason, validation.Required, validation.Length(3, 500)),
	)
}
