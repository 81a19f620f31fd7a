package internal

import "errors"

// Error kinds surfaced to callers. Session actions place the latest
// one in the room state store's error slot for display.
var (
	ErrConfigurationMissing = errors.New("backend configuration missing")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room full")
	ErrRoomCodeTaken        = errors.New("room code taken")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrTransport            = errors.New("transport error")
	ErrNotLeaseHolder       = errors.New("not the host lease holder")
)
