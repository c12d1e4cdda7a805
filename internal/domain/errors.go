package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrNoForecasts     = errors.New("no forecasts available")
	ErrEmptyOrderbook  = errors.New("empty orderbook")
	ErrStaleQuote      = errors.New("quote older than current cycle")
	ErrLockHeld        = errors.New("lock already held")
	ErrWSDisconnect    = errors.New("websocket disconnected")
	ErrMarketNotParsed = errors.New("market ticker not parseable")
)
