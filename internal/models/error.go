package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict")
	ErrInternalServer = errors.New("internal server error")

	// Engine errors
	ErrInvalidAddress   = errors.New("address is not a valid IPv4 or IPv6 literal")
	ErrSignatureFailure = errors.New("failed to compute record signature")

	// History provider errors. ErrRealmUnavailable means the realm has no
	// history data source at all and must be skipped rather than treated
	// as a lookup failure.
	ErrRealmUnavailable   = errors.New("realm has no history data source")
	ErrHistoryUnavailable = errors.New("history provider unavailable")
)
