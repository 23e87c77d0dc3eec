package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyActive    = errors.New("round already active for asset")
	ErrAlreadyResolved  = errors.New("round already resolved")
	ErrRoundNotActive   = errors.New("round not active")
	ErrNoSnapshot       = errors.New("no price snapshot available")
	ErrInvalidDirection = errors.New("invalid prediction direction")
	ErrUnknownAsset     = errors.New("asset not tracked")
	ErrRateLimited      = errors.New("rate limited")
)
