package errors

import "fmt"

var (
	ErrWorkerPanic            = fmt.Errorf("worker panic")
	ErrTransportUnavailable   = fmt.Errorf("transport unavailable: not connected")
	ErrMalformedFrame         = fmt.Errorf("malformed frame")
	ErrUnknownFrame           = fmt.Errorf("frame is neither presence nor chat")
	ErrFetchFailed            = fmt.Errorf("fetch failed")
	ErrLogoutFailed           = fmt.Errorf("logout failed")
	ErrNoConversationSelected = fmt.Errorf("no conversation selected")
	ErrEmptyMessage           = fmt.Errorf("message has neither text nor file")
	ErrSessionClosed          = fmt.Errorf("session closed")
	ErrMissingIdentity        = fmt.Errorf("local user identity is unknown")
	ErrInvalidOutbound        = fmt.Errorf("invalid outbound frame")
	ErrUnknownCommand         = fmt.Errorf("unknown command")
	ErrSearchDisabled         = fmt.Errorf("search is disabled")
)
