package engine

import "errors"

var (
	ErrUnauthorized           = errors.New("engine: authority not permitted")
	ErrDepositMetadataMissing = errors.New("engine: deposit metadata required")
	ErrZeroAmount             = errors.New("engine: amount must be positive")
	ErrInvalidRate            = errors.New("engine: basis-point rate exceeds 10000")
)
