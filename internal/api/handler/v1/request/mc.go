package request

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// GrantRequest leaves amount, expiry and source checks to the lifecycle
// guards so that those denials are recorded in the ledger.
type GrantRequest struct {
	OwnerID    string     `json:"owner_id"`
	Amount     int64      `json:"amount"`
	ExpiresAt  *time.Time `json:"expires_at"`
	SourceType string     `json:"source_type"`
	SourceID   string     `json:"source_id"`
}

func (req *GrantRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.OwnerID, validation.Required, validation.Length(1, 128)),
		validation.Field(&req.SourceType, validation.Required),
		validation.Field(&req.SourceID, validation.Length(0, 128)),
	)
}

type SpendRequest struct {
	Reference string `json:"reference"`
}

func (req *SpendRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reference, validation.Required, validation.Length(1, 256)),
	)
}
