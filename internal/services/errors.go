package services

import "errors"

// Validation errors: rejected before any I/O.
var (
	ErrInvalidPrice       = errors.New("price must be a positive number")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrInvalidDeviceID    = errors.New("invalid device identifier")
	ErrInvalidNetworkAddr = errors.New("invalid network address")
	ErrUnknownTrackEvent  = errors.New("unknown tracking event")
	ErrUnknownOperation   = errors.New("unknown bulk operation type")
	ErrNoEntities         = errors.New("no entity ids given")
	ErrBatchTooLarge      = errors.New("too many entity ids for one bulk call")
	ErrMissingAdjustment  = errors.New("adjustment amount must be non-zero")
	ErrMissingNotifyBody  = errors.New("notification subject and body are required")
)

// Precondition errors: rejected after a read but before any write.
var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrProviderNotVerified = errors.New("provider is not verified")
	ErrRequestNotFound     = errors.New("request not found")
	ErrRequestArchived     = errors.New("request is archived")
	ErrRequestClosed       = errors.New("request is closed or cancelled")
	ErrRequestNotApproved  = errors.New("request is not approved")
	ErrDuplicateOffer      = errors.New("an offer for this request already exists")

	// ErrInsufficientBalance covers both the static pre-check and the
	// transactional re-read losing a race; callers cannot tell the two
	// apart.
	ErrInsufficientBalance = errors.New("insufficient credit balance")
)
