package service

import "errors"

var (
	ErrInvalidTenant       = errors.New("tenant id is required")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrSequenceUnavailable = errors.New("sequence storage unavailable")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderAlreadyDecided = errors.New("order already decided")
)
