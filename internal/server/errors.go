package server

import "errors"

var (
	// Server lifecycle errors
	ErrServerStartFailed = errors.New("failed to start server")
	ErrServerStopFailed  = errors.New("failed to stop server")

	// Message handling errors
	ErrInvalidPayloadType   = errors.New("invalid payload type for message")
	ErrHandlerNotRegistered = errors.New("no handler registered for message type")
	ErrEmptyImage           = errors.New("request carries no image")

	// Client errors
	ErrRemoteRejected = errors.New("server rejected request")
	ErrBadResponse    = errors.New("malformed server response")
)
