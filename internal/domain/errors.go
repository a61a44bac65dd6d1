package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrNotResolvable   = errors.New("not yet resolvable")
	ErrMarketResolved  = errors.New("market already resolved")
	ErrInvalidOutcome  = errors.New("invalid outcome index")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrIndexerDegraded = errors.New("indexer degraded")
)
