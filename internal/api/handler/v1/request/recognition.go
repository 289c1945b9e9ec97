package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RecognizeRequest is checked for shape only. Category, amount and the
// justification length are guarded by the registry.
type RecognizeRequest struct {
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	Category      string `json:"category"`
	Justification string `json:"justification"`
}

func (req *RecognizeRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.UserID, validation.Required, validation.Length(1, 128)),
		validation.Field(&req.Category, validation.Required, is.PrintableASCII),
	)
}

type EvaluateUsageRequest struct {
	UserID    string            `json:"user_id"`
	Domain    string            `json:"domain"`
	Operation string            `json:"operation"`
	Metadata  map[string]string `json:"metadata"`
}

func (req *EvaluateUsageRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.UserID, validation.Length(0, 128)),
		validation.Field(&req.Operation, validation.Length(0, 64)),
	)
}
