package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrUnknownEvent     = fmt.Errorf("unknown relay event")
	ErrNotJoined        = fmt.Errorf("connection has not joined")
	ErrInvalidToken     = fmt.Errorf("invalid or expired token")
	ErrMissingRecipient = fmt.Errorf("recipient is required")
	ErrEmptyBody        = fmt.Errorf("message body is empty")
	ErrBodyTooLong      = fmt.Errorf("message body exceeds the configured limit")
	ErrSessionClosed    = fmt.Errorf("session is closed")
	ErrSinkFull         = fmt.Errorf("connection buffer is full")
	ErrHandshakeFailed  = fmt.Errorf("handshake retries exhausted")
)
