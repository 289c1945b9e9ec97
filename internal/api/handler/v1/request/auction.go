package request

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

type ScheduleAuctionRequest struct {
	Name           string    `json:"name"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	EntryCostMC    int64     `json:"entry_cost_mc"`
	WinProbability float64   `json:"win_probability"`
}

func (req *ScheduleAuctionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&req.StartsAt, validation.Required),
		validation.Field(&req.EndsAt, validation.Required),
	)
}

type CancelAuctionRequest struct {
	Reason string `json:"reason"`
}

func (req *CancelAuctionRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.Reason, validation.Required, validation.Length(3, 500)),
	)
}

type ParticipateRequest struct {
	TokenIDs []string `json:"token_ids"`
}

func (req *ParticipateRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.TokenIDs, validation.Required, validation.By(noBlankIDs)),
	)
}

func noBlankIDs(value interface{}) error {
	ids, _ := value.([]string)
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return errors.New("must not contain blank ids")
		}
	}
	return nil
}
