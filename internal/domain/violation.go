package domain

import (
	"errors"
	"fmt"
)

// ReasonCode is the stable identifier carried by every guard violation.
type ReasonCode string

const (
	ReasonForbiddenActor  ReasonCode = "ForbiddenActor"
	ReasonMissingActor    ReasonCode = "MissingActor"
	ReasonMissingOwner    ReasonCode = "MissingOwner"
	ReasonInvalidAmount   ReasonCode = "InvalidAmount"
	ReasonMissingExpiry   ReasonCode = "MissingExpiry"
	ReasonInvalidTTL      ReasonCode = "InvalidTTL"
	ReasonInvalidSource   ReasonCode = "InvalidSource"
	ReasonTerminalState   ReasonCode = "TerminalState"
	ReasonInvalidState    ReasonCode = "InvalidState"
	ReasonTokenFrozen     ReasonCode = "TokenFrozen"
	ReasonTokenExpired    ReasonCode = "TokenExpired"
	ReasonNotYetExpired   ReasonCode = "NotYetExpired"
	ReasonStaleTransition ReasonCode = "StaleTransition"
	ReasonMCNotFound      ReasonCode = "MCNotFound"

	// ReasonInfrastructure is recorded on purchases rolled back by a storage
	// failure. It is never returned as a violation.
	ReasonInfrastructure ReasonCode = "InfrastructureError"

	ReasonStoreMaintenance ReasonCode = "StoreMaintenance"
	ReasonUserRestricted   ReasonCode = "UserRestricted"
	ReasonAllMCFrozen      ReasonCode = "AllMCFrozen"
	ReasonNoActiveMC       ReasonCode = "NoActiveMC"

	ReasonInsufficientFunds   ReasonCode = "InsufficientFunds"
	ReasonOutOfStock          ReasonCode = "OutOfStock"
	ReasonLimitExceeded       ReasonCode = "LimitExceeded"
	ReasonItemInactive        ReasonCode = "ItemInactive"
	ReasonItemNotFound        ReasonCode = "ItemNotFound"
	ReasonIdempotencyRejected ReasonCode = "IdempotencyRejected"
	ReasonConcurrentRequest   ReasonCode = "ConcurrentRequest"
	ReasonInvalidRequest      ReasonCode = "InvalidRequest"

	ReasonAuctionClosed       ReasonCode = "AuctionClosed"
	ReasonAuctionNotStarted   ReasonCode = "AuctionNotStarted"
	ReasonAccessDenied        ReasonCode = "AccessDenied"
	ReasonAlreadyParticipated ReasonCode = "AlreadyParticipated"
	ReasonInvalidWindow       ReasonCode = "InvalidWindow"
	ReasonInvalidRandomFactor ReasonCode = "InvalidRandomFactor"
	ReasonAuctionNotFound     ReasonCode = "AuctionNotFound"

	ReasonMissingSnapshot    ReasonCode = "MissingSnapshot"
	ReasonAuctionNotClosed   ReasonCode = "AuctionNotClosed"
	ReasonInvalidParticipant ReasonCode = "InvalidParticipant"
	ReasonBelowThreshold     ReasonCode = "BelowThreshold"
	ReasonNotSelected        ReasonCode = "NotSelected"

	ReasonJustificationTooShort ReasonCode = "JustificationTooShort"
	ReasonInvalidCategory       ReasonCode = "InvalidCategory"
	ReasonSelfRecognition       ReasonCode = "SelfRecognition"
	ReasonImmutableRecord       ReasonCode = "ImmutableRecord"

	ReasonUnknownDomain       ReasonCode = "UnknownDomain"
	ReasonMissingOperation    ReasonCode = "MissingOperation"
	ReasonAutomatedUsage      ReasonCode = "AutomatedUsage"
	ReasonGMCNotSpendable     ReasonCode = "GMCNotSpendable"
	ReasonElevatedTransfer    ReasonCode = "ElevatedTransfer"
	ReasonStaleSnapshotTokens ReasonCode = "StaleSnapshotTokens"

	ReasonScopeDenied     ReasonCode = "ScopeDenied"
	ReasonUnknownConsumer ReasonCode = "UnknownConsumer"
)

// IsRetryable reports whether the same request may succeed later without any
// change on the caller's side.
func (c ReasonCode) IsRetryable() bool {
	return c == ReasonConcurrentRequest
}

// Violation is an expected, deterministic business denial. It is returned as an
// error value and matched by code, never by message.
type Violation struct {
	Code    ReasonCode
	Message string
}

func NewViolation(code ReasonCode, format string, args ...any) *Violation {
	return &Violation{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (v *Violation) Error() string {
	if v.Message == "" {
		return string(v.Code)
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// Is lets errors.Is(err, domain.ErrInsufficientFunds) match any violation with the same code.
func (v *Violation) Is(target error) bool {
	t, ok := target.(*Violation)
	if !ok {
		return false
	}
	return t.Code == v.Code
}

var (
	ErrForbiddenActor      = &Violation{Code: ReasonForbiddenActor}
	ErrMissingActor        = &Violation{Code: ReasonMissingActor}
	ErrInvalidTTL          = &Violation{Code: ReasonInvalidTTL}
	ErrMissingExpiry       = &Violation{Code: ReasonMissingExpiry}
	ErrTerminalState       = &Violation{Code: ReasonTerminalState}
	ErrInvalidState        = &Violation{Code: ReasonInvalidState}
	ErrTokenFrozen         = &Violation{Code: ReasonTokenFrozen}
	ErrMCNotFound          = &Violation{Code: ReasonMCNotFound}
	ErrStaleTransition     = &Violation{Code: ReasonStaleTransition}
	ErrInsufficientFunds   = &Violation{Code: ReasonInsufficientFunds}
	ErrOutOfStock          = &Violation{Code: ReasonOutOfStock}
	ErrLimitExceeded       = &Violation{Code: ReasonLimitExceeded}
	ErrItemInactive        = &Violation{Code: ReasonItemInactive}
	ErrItemNotFound        = &Violation{Code: ReasonItemNotFound}
	ErrIdempotencyRejected = &Violation{Code: ReasonIdempotencyRejected}
	ErrConcurrentRequest   = &Violation{Code: ReasonConcurrentRequest}
	ErrAuctionClosed       = &Violation{Code: ReasonAuctionClosed}
	ErrAuctionNotStarted   = &Violation{Code: ReasonAuctionNotStarted}
	ErrAccessDenied        = &Violation{Code: ReasonAccessDenied}
	ErrAlreadyParticipated = &Violation{Code: ReasonAlreadyParticipated}
	ErrAuctionNotFound     = &Violation{Code: ReasonAuctionNotFound}
	ErrImmutableRecord     = &Violation{Code: ReasonImmutableRecord}
	ErrScopeDenied         = &Violation{Code: ReasonScopeDenied}
	ErrUnknownConsumer     = &Violation{Code: ReasonUnknownConsumer}
)

// ReasonOf extracts the reason code of a violation, or "" for any other error.
func ReasonOf(err error) ReasonCode {
	var v *Violation
	if errors.As(err, &v) {
		return v.Code
	}
	return ""
}
